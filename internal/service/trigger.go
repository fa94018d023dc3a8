package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/data"
	"github.com/flowpulse/flowpulse/internal/domain/model"
	apperrors "github.com/flowpulse/flowpulse/internal/errors"
)

// receiptKeyPrefix namespaces trigger receipts in the shared cache.
const receiptKeyPrefix = "flowpulse:trigger:"

// DefaultDedupeTTL bounds how long a stored receipt satisfies duplicate
// triggers.
const DefaultDedupeTTL = 24 * time.Hour

// TriggerDedupeConfig tunes trigger deduplication.
type TriggerDedupeConfig struct {
	// TTL is the receipt lifetime. Non-positive values use DefaultDedupeTTL.
	TTL time.Duration
}

// TriggerServiceOptions groups dependencies for TriggerService.
type TriggerServiceOptions struct {
	Trigger      core.WorkflowTrigger // Required: fires the webhook
	Cache        core.CacheRepository // Optional: enables idempotent triggers
	Config       TriggerDedupeConfig  // Optional: dedupe tuning
	Logger       *slog.Logger         // Optional: structured logger
	TimeProvider data.TimeProvider    // Optional: receipt timestamps
}

// TriggerService fires workflow webhooks with idempotency receipts. A
// duplicate trigger carrying an idempotency key already claimed within the
// receipt TTL returns the stored handle instead of firing the webhook again.
// Without a cache the service degrades to a plain passthrough.
//
// The cache is best effort: a failing cache never blocks a trigger, it only
// costs the dedupe guarantee for that call.
type TriggerService struct {
	trigger      core.WorkflowTrigger
	cache        core.CacheRepository
	ttl          time.Duration
	logger       *slog.Logger
	timeProvider data.TimeProvider
}

var _ core.WorkflowTrigger = (*TriggerService)(nil)

// NewTriggerService constructs a TriggerService.
func NewTriggerService(opts TriggerServiceOptions) (*TriggerService, error) {
	if opts.Trigger == nil {
		return nil, errors.New("WorkflowTrigger is required")
	}

	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	return &TriggerService{
		trigger:      opts.Trigger,
		cache:        opts.Cache,
		ttl:          ttl,
		logger:       logger.With("component", "trigger"),
		timeProvider: timeProvider,
	}, nil
}

// Trigger fires the workflow webhook, consulting the receipt cache first
// when the params carry an idempotency key. Calls without a key store their
// receipt under a generated key so the trigger is still recorded, but can
// never be deduplicated.
func (s *TriggerService) Trigger(ctx context.Context, params core.TriggerParams) (model.ExecutionHandle, error) {
	if s.cache == nil {
		return s.trigger.Trigger(ctx, params)
	}

	key := strings.TrimSpace(params.IdempotencyKey)
	generated := false
	if key == "" {
		key = uuid.NewString()
		generated = true
	}

	if !generated {
		if handle, ok := s.lookupReceipt(ctx, key); ok {
			s.logger.InfoContext(ctx, "trigger deduplicated",
				"idempotency_key", key,
				"execution_id", handle.ExecutionID,
				"webhook_path", params.WebhookPath,
			)
			return handle, nil
		}
	}

	handle, err := s.trigger.Trigger(ctx, params)
	if err != nil {
		return model.ExecutionHandle{}, fmt.Errorf("trigger workflow: %w", err)
	}

	s.storeReceipt(ctx, key, generated, handle)
	return handle, nil
}

// Forget drops the receipt stored under an idempotency key so the next
// trigger carrying it fires the webhook again. It reports whether a receipt
// existed. Without a cache there is nothing to forget.
func (s *TriggerService) Forget(ctx context.Context, idempotencyKey string) (bool, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return false, apperrors.ValidationField("idempotency_key", "idempotency key is required")
	}
	if s.cache == nil {
		return false, nil
	}

	removed, err := s.cache.Delete(ctx, receiptKeyPrefix+key)
	if err != nil {
		return false, fmt.Errorf("forget trigger receipt: %w", err)
	}
	if removed {
		s.logger.InfoContext(ctx, "trigger receipt forgotten", "idempotency_key", key)
	}
	return removed, nil
}

// lookupReceipt returns the handle stored under key, if any. Lookup failures
// are logged and treated as misses so the trigger still fires.
func (s *TriggerService) lookupReceipt(ctx context.Context, key string) (model.ExecutionHandle, bool) {
	raw, err := s.cache.Get(ctx, receiptKeyPrefix+key)
	if err != nil {
		s.logger.WarnContext(ctx, "trigger receipt lookup failed, firing anyway",
			"idempotency_key", key,
			"error", err,
		)
		return model.ExecutionHandle{}, false
	}
	if raw == nil {
		return model.ExecutionHandle{}, false
	}

	var receipt model.TriggerReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		s.logger.WarnContext(ctx, "trigger receipt corrupt, firing anyway",
			"idempotency_key", key,
			"error", err,
		)
		return model.ExecutionHandle{}, false
	}
	return receipt.Handle, true
}

// storeReceipt records the receipt for key. Caller-provided keys claim the
// slot with SET NX; losing that claim to a concurrent trigger is only
// logged, because the webhook already fired and the caller keeps the locally
// produced handle. Generated keys are fresh UUIDs nothing can contend, so
// they are written unconditionally.
func (s *TriggerService) storeReceipt(ctx context.Context, key string, generated bool, handle model.ExecutionHandle) {
	receipt := model.TriggerReceipt{
		IdempotencyKey: key,
		Handle:         handle,
		StoredAt:       s.timeProvider.Now(),
	}
	raw, err := json.Marshal(receipt)
	if err != nil {
		s.logger.WarnContext(ctx, "encode trigger receipt failed",
			"idempotency_key", key,
			"error", err,
		)
		return
	}

	if generated {
		if err := s.cache.Set(ctx, receiptKeyPrefix+key, raw, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "store trigger receipt failed",
				"idempotency_key", key,
				"error", err,
			)
		}
		return
	}

	wasSet, err := s.cache.SetIfNotExists(ctx, receiptKeyPrefix+key, raw, s.ttl)
	if err != nil {
		s.logger.WarnContext(ctx, "store trigger receipt failed",
			"idempotency_key", key,
			"error", err,
		)
		return
	}
	if !wasSet {
		s.logger.WarnContext(ctx, "concurrent trigger won the receipt claim",
			"idempotency_key", key,
			"execution_id", handle.ExecutionID,
		)
	}
}
