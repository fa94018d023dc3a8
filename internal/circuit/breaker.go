// Package circuit guards remote endpoints with shared circuit breakers.
// One breaker exists per endpoint, shared by every execution polling it, so
// an unhealthy remote is backed off by all trackers at once.
package circuit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/flowpulse/flowpulse/internal/errors"
)

// Phase represents a breaker's position in its state machine.
type Phase string

const (
	// PhaseClosed passes attempts through while counting failures.
	PhaseClosed Phase = "closed"
	// PhaseOpen refuses attempts without a remote call.
	PhaseOpen Phase = "open"
	// PhaseHalfOpen admits a bounded number of trial attempts.
	PhaseHalfOpen Phase = "half_open"
	// PhaseUnknown is reported for states this package does not recognize.
	PhaseUnknown Phase = "unknown"
)

// Options fully specifies breaker behavior for an endpoint.
type Options struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Successes reset the count.
	FailureThreshold uint32
	// OpenDuration is how long an open breaker refuses attempts before
	// admitting trials.
	OpenDuration time.Duration
	// TrialBudget is how many attempts may pass while half-open.
	TrialBudget uint32
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", o.FailureThreshold)
	}
	if o.OpenDuration <= 0 {
		return fmt.Errorf("open duration must be positive, got %s", o.OpenDuration)
	}
	if o.TrialBudget < 1 {
		return fmt.Errorf("trial budget must be at least 1, got %d", o.TrialBudget)
	}
	return nil
}

// DefaultOptions returns the stock breaker thresholds: five consecutive
// failures open the breaker for thirty seconds, then one trial is admitted.
func DefaultOptions() Options {
	return Options{
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
		TrialBudget:      1,
	}
}

// Snapshot is a point-in-time view of one endpoint's circuit state.
type Snapshot struct {
	Endpoint            string    `json:"endpoint"`
	Phase               Phase     `json:"phase"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	TrialBudget         uint32    `json:"trial_budget"`
}

// Breaker serializes health accounting for one remote endpoint. All phase
// transitions and counter updates happen inside gobreaker's own lock, so
// concurrent pollers cannot race a transition.
type Breaker struct {
	endpoint string
	opts     Options
	inner    *gobreaker.TwoStepCircuitBreaker

	mu       sync.Mutex
	openedAt time.Time
}

func newBreaker(endpoint string, opts Options, logger *slog.Logger, onChange func(endpoint string, from, to Phase)) *Breaker {
	b := &Breaker{
		endpoint: endpoint,
		opts:     opts,
	}
	b.inner = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: opts.TrialBudget,
		Timeout:     opts.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			fromPhase, toPhase := convertState(from), convertState(to)
			b.recordTransition(toPhase)
			logger.Info("circuit state changed",
				"endpoint", endpoint,
				"from", fromPhase,
				"to", toPhase,
			)
			if onChange != nil {
				onChange(endpoint, fromPhase, toPhase)
			}
		},
	})
	return b
}

// Allow consults the breaker immediately before a remote call. On success it
// returns a report callback that must be invoked with the attempt's outcome
// right after the call finishes. While the breaker refuses attempts, Allow
// returns a circuit_open error and no remote call may be made.
func (b *Breaker) Allow() (func(success bool), error) {
	done, err := b.inner.Allow()
	if err != nil {
		// Both refusal modes (open, half-open budget spent) look the same
		// to a poller: no call happens and the retry policy takes over.
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeCircuitOpen, "circuit open for endpoint %q", b.endpoint)
	}
	return done, nil
}

// Endpoint returns the endpoint this breaker guards.
func (b *Breaker) Endpoint() string {
	return b.endpoint
}

// Phase returns the breaker's current phase.
func (b *Breaker) Phase() Phase {
	return convertState(b.inner.State())
}

// Snapshot returns the breaker's current observable state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	openedAt := b.openedAt
	b.mu.Unlock()

	return Snapshot{
		Endpoint:            b.endpoint,
		Phase:               convertState(b.inner.State()),
		ConsecutiveFailures: b.inner.Counts().ConsecutiveFailures,
		OpenedAt:            openedAt,
		TrialBudget:         b.opts.TrialBudget,
	}
}

func (b *Breaker) recordTransition(to Phase) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if to == PhaseOpen {
		b.openedAt = time.Now()
		return
	}
	if to == PhaseClosed {
		b.openedAt = time.Time{}
	}
}

func convertState(state gobreaker.State) Phase {
	switch state {
	case gobreaker.StateClosed:
		return PhaseClosed
	case gobreaker.StateOpen:
		return PhaseOpen
	case gobreaker.StateHalfOpen:
		return PhaseHalfOpen
	default:
		return PhaseUnknown
	}
}
