// Package core defines the ports between the flowpulse tracking engine and its
// remote-facing adapters.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flowpulse/flowpulse/internal/domain/model"
)

// This file contains remote client interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the tracking engine and the HTTP data layer.
// Engine implementations should depend on these interfaces, not concrete implementations.

// TriggerParams groups parameters for WorkflowTrigger.Trigger (≤3 params rule).
type TriggerParams struct {
	// WebhookPath is the path component of the workflow's webhook endpoint.
	WebhookPath string
	// Payload is the JSON body posted to the webhook. May be nil.
	Payload json.RawMessage
	// IdempotencyKey enables trigger deduplication when non-blank.
	IdempotencyKey string
}

// WorkflowTrigger defines the interface for starting a remote workflow execution.
type WorkflowTrigger interface {
	// Trigger fires the workflow webhook and returns as soon as the remote accepts it.
	// When the remote does not echo an execution identifier back, the returned handle
	// carries a synthesized placeholder ID and Handle.Synthesized is true.
	Trigger(ctx context.Context, params TriggerParams) (model.ExecutionHandle, error)
}

// StatusFetcher defines the interface for reading the remote state of an execution.
type StatusFetcher interface {
	// FetchStatus is idempotent and safe to call repeatedly. Failures carry
	// apperrors codes so callers can classify them without inspecting transports.
	// The returned state has no sequence number; the poller assigns one on emission.
	FetchStatus(ctx context.Context, handle model.ExecutionHandle) (model.ExecutionState, error)
}

// ExecutionResumer defines the interface for unblocking a Waiting execution.
type ExecutionResumer interface {
	// Resume posts external input to a waiting execution so the next poll can
	// observe it leaving the Waiting state.
	Resume(ctx context.Context, handle model.ExecutionHandle, input json.RawMessage) error
}

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	// This is useful for implementing trigger deduplication.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}
