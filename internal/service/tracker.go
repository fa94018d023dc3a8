// Package service provides the business logic services of the flowpulse
// tracking engine: triggering workflows with idempotency receipts and
// tracking remote executions as reactive state streams.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flowpulse/flowpulse/internal/circuit"
	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/data"
	"github.com/flowpulse/flowpulse/internal/domain/model"
	"github.com/flowpulse/flowpulse/internal/domain/pacing"
	"github.com/flowpulse/flowpulse/internal/domain/retry"
	apperrors "github.com/flowpulse/flowpulse/internal/errors"
	"github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/observability/statsd"
)

// TrackerConfig holds the tracking defaults applied to every Track call that
// does not override them.
type TrackerConfig struct {
	// Endpoint names the remote status API for circuit breaker identity and
	// metric tags. Every execution tracked by one service shares the
	// endpoint's breaker.
	Endpoint string
	// Retry is the default retry profile for failed polls.
	Retry retry.Options
	// Pacing is the default adaptive interval schedule.
	Pacing pacing.Options
	// Deadline caps how long one execution may be tracked. Zero means
	// unbounded.
	Deadline time.Duration
}

// DefaultTrackerConfig returns the stock tracking configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Endpoint: "remote",
		Retry:    retry.ConservativeOptions(),
		Pacing:   pacing.DefaultOptions(),
	}
}

// TrackerServiceOptions groups dependencies for TrackerService.
type TrackerServiceOptions struct {
	Fetcher      core.StatusFetcher // Required: remote status port
	Breakers     *circuit.Registry  // Required: shared per-endpoint breakers
	Config       *TrackerConfig     // Optional: defaults via DefaultTrackerConfig
	Logger       *slog.Logger       // Optional: structured logger
	Metrics      statsd.Sink        // Optional: metric sink
	TimeProvider data.TimeProvider  // Optional: clock override for tests
	Sleep        SleepFunc          // Optional: wait override for tests
}

// TrackerService turns execution handles into reactive state streams. Each
// Track call runs one poll goroutine that lives exactly as long as its
// stream.
type TrackerService struct {
	fetcher      core.StatusFetcher
	breakers     *circuit.Registry
	cfg          TrackerConfig
	policy       *retry.Policy
	logger       *slog.Logger
	sink         statsd.Sink
	timeProvider data.TimeProvider
	sleep        SleepFunc

	active atomic.Int64
}

// NewTrackerService constructs a TrackerService, validating the retry and
// pacing option ranges up front so Track calls cannot fail on configuration.
func NewTrackerService(opts TrackerServiceOptions) (*TrackerService, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("StatusFetcher is required")
	}
	if opts.Breakers == nil {
		return nil, errors.New("circuit registry is required")
	}

	cfg := DefaultTrackerConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultTrackerConfig().Endpoint
	}

	policy, err := retry.NewPolicy(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("create retry policy: %w", err)
	}
	if err := cfg.Pacing.Validate(); err != nil {
		return nil, fmt.Errorf("validate pacing options: %w", err)
	}
	if cfg.Deadline < 0 {
		return nil, fmt.Errorf("deadline must be >= 0, got %s", cfg.Deadline)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &TrackerService{
		fetcher:      opts.Fetcher,
		breakers:     opts.Breakers,
		cfg:          cfg,
		policy:       policy,
		logger:       logger.With("component", "tracker"),
		sink:         opts.Metrics,
		timeProvider: timeProvider,
		sleep:        sleep,
	}, nil
}

// MustNewTrackerService constructs a TrackerService and panics on error.
// Use this when the options are known valid, such as in main.go.
func MustNewTrackerService(opts TrackerServiceOptions) *TrackerService {
	svc, err := NewTrackerService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TrackerService: %v", err))
	}
	return svc
}

// TrackOptions tune one Track call. Zero values fall back to the service
// configuration.
type TrackOptions struct {
	// Deadline caps this execution's tracking. Zero uses the config default.
	Deadline time.Duration
	// Retry overrides the retry profile for this execution.
	Retry *retry.Options
	// Pacing overrides the interval schedule for this execution.
	Pacing *pacing.Options
}

// Track starts polling the execution behind handle and returns its state
// stream. The poll goroutine exits when the stream completes or is canceled;
// the returned stream is finite and not restartable.
func (s *TrackerService) Track(ctx context.Context, handle model.ExecutionHandle, opts TrackOptions) (*ExecutionStream, error) {
	if err := handle.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "validate execution handle")
	}

	policy := s.policy
	if opts.Retry != nil {
		override, err := retry.NewPolicy(*opts.Retry)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "validate retry override")
		}
		policy = override
	}

	pacingOpts := s.cfg.Pacing
	if opts.Pacing != nil {
		pacingOpts = *opts.Pacing
	}
	schedule, err := pacing.NewSchedule(pacingOpts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "validate pacing override")
	}

	deadline := opts.Deadline
	if deadline == 0 {
		deadline = s.cfg.Deadline
	}
	if deadline < 0 {
		return nil, apperrors.ValidationField("deadline", "deadline must be >= 0")
	}

	if handle.Synthesized {
		s.logger.WarnContext(ctx, "tracking synthesized execution id; the remote may not recognize it",
			"execution_id", handle.ExecutionID,
			"workflow_ref", handle.WorkflowRef,
		)
	}

	pollCtx, cancel := s.pollContext(ctx, deadline)

	buf := newRecoveryBuffer(s.sink)
	stream := newExecutionStream(handle, buf, cancel, s.sink)
	p := &poller{
		handle:   handle,
		endpoint: s.cfg.Endpoint,
		fetcher:  s.fetcher,
		breaker:  s.breakers.Get(s.cfg.Endpoint),
		policy:   policy,
		schedule: schedule,
		buf:      buf,
		logger:   s.logger,
		sink:     s.sink,
		time:     s.timeProvider,
		sleep:    s.sleep,
	}

	metrics.EmitActiveExecutions(s.sink, int(s.active.Add(1)))
	s.logger.InfoContext(ctx, "tracking started",
		"execution_id", handle.ExecutionID,
		"workflow_ref", handle.WorkflowRef,
		"endpoint", s.cfg.Endpoint,
		"deadline", deadline,
	)

	go func() {
		defer cancel()
		outcome := p.run(pollCtx)
		stream.finish(outcome)
		metrics.EmitActiveExecutions(s.sink, int(s.active.Add(-1)))
		s.logger.Info("tracking finished",
			"execution_id", handle.ExecutionID,
			"canceled", outcome.canceled,
			"error", outcome.err,
		)
	}()

	return stream, nil
}

// Active returns how many executions the service is currently polling.
func (s *TrackerService) Active() int {
	return int(s.active.Load())
}

// Breakers exposes the circuit snapshots of the service's registry.
func (s *TrackerService) Breakers() []circuit.Snapshot {
	return s.breakers.Snapshots()
}

func (s *TrackerService) pollContext(ctx context.Context, deadline time.Duration) (context.Context, context.CancelFunc) {
	if deadline > 0 {
		return context.WithTimeout(ctx, deadline)
	}
	return context.WithCancel(ctx)
}
