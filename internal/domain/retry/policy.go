// Package retry decides whether and when a failed remote attempt should be
// tried again. The policy is pure: it holds no clock and schedules nothing,
// it only answers decisions from an attempt index and the elapsed time.
package retry

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	apperrors "github.com/flowpulse/flowpulse/internal/errors"
)

// ErrNilRand indicates a policy was constructed without a jitter source.
var ErrNilRand = errors.New("jitter rand must not be nil")

// Verdict identifies how a retry decision was reached.
type Verdict string

const (
	// VerdictRetry indicates the attempt should be retried after Delay.
	VerdictRetry Verdict = "retry"
	// VerdictFatal indicates the error is not retryable.
	VerdictFatal Verdict = "fatal"
	// VerdictAttemptsExhausted indicates the attempt budget is spent.
	VerdictAttemptsExhausted Verdict = "attempts_exhausted"
	// VerdictElapsedExhausted indicates the elapsed-time budget is spent.
	VerdictElapsedExhausted Verdict = "elapsed_exhausted"
)

// Options fully specifies a retry policy. There are no implicit defaults:
// callers pass a complete value, typically one of the named profiles below.
type Options struct {
	// BaseDelay is the unjittered delay after the first failure.
	BaseDelay time.Duration
	// MaxDelay caps the unjittered delay growth.
	MaxDelay time.Duration
	// Multiplier grows the delay per attempt. Must be at least 1.
	Multiplier float64
	// MaxAttempts caps how many retries are granted. Zero disables retrying.
	MaxAttempts int
	// MaxElapsed caps the cumulative time since the first attempt. Zero
	// means no elapsed-time bound.
	MaxElapsed time.Duration
	// JitterFraction perturbs each delay by a uniform random fraction in
	// [-JitterFraction, +JitterFraction]. Must be within [0, 0.5].
	JitterFraction float64
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %s", o.BaseDelay)
	}
	if o.MaxDelay < o.BaseDelay {
		return fmt.Errorf("max delay %s must not be below base delay %s", o.MaxDelay, o.BaseDelay)
	}
	if o.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %g", o.Multiplier)
	}
	if o.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be >= 0, got %d", o.MaxAttempts)
	}
	if o.MaxElapsed < 0 {
		return fmt.Errorf("max elapsed must be >= 0, got %s", o.MaxElapsed)
	}
	if o.JitterFraction < 0 || o.JitterFraction > 0.5 {
		return fmt.Errorf("jitter fraction must be within [0, 0.5], got %g", o.JitterFraction)
	}
	return nil
}

// ConservativeOptions returns a profile suited to long-running workflows on
// rate-limited remotes.
func ConservativeOptions() Options {
	return Options{
		BaseDelay:      2 * time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2,
		MaxAttempts:    5,
		MaxElapsed:     10 * time.Minute,
		JitterFraction: 0.2,
	}
}

// AggressiveOptions returns a profile suited to short-lived workflows where
// fast completion detection matters more than remote load.
func AggressiveOptions() Options {
	return Options{
		BaseDelay:      250 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     1.5,
		MaxAttempts:    10,
		MaxElapsed:     2 * time.Minute,
		JitterFraction: 0.2,
	}
}

// Decision captures the outcome of one retry consultation.
type Decision struct {
	Retry bool
	// Delay is the jittered wait before the next attempt. Zero unless Retry.
	Delay time.Duration
	// Unjittered is the capped delay before jitter, kept for logging and
	// for callers that need the deterministic schedule.
	Unjittered time.Duration
	Verdict    Verdict
}

// Exhausted reports whether the decision ended retrying because a budget was
// spent rather than because the error was fatal.
func (d Decision) Exhausted() bool {
	return d.Verdict == VerdictAttemptsExhausted || d.Verdict == VerdictElapsedExhausted
}

// Policy is an immutable retry decider constructed from validated Options.
type Policy struct {
	opts Options
	rand func() float64
}

// NewPolicy constructs a Policy, validating the option ranges.
func NewPolicy(opts Options) (*Policy, error) {
	return newPolicyWithRand(opts, cryptoFloat)
}

func newPolicyWithRand(opts Options, randFloat func() float64) (*Policy, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validate retry options: %w", err)
	}
	if randFloat == nil {
		return nil, ErrNilRand
	}
	return &Policy{
		opts: opts,
		rand: randFloat,
	}, nil
}

// Options returns a copy of the policy's configuration.
func (p *Policy) Options() Options {
	return p.opts
}

// Decide resolves whether the attempt that just failed should be retried.
// attemptIndex is zero-based: the first failure in a run is index 0. elapsed
// is the cumulative time since that run's first attempt began.
//
// Transient and circuit-open failures draw down the same budget; fatal
// failures stop immediately regardless of remaining budget.
func (p *Policy) Decide(err error, attemptIndex int, elapsed time.Duration) Decision {
	if !apperrors.Retryable(err) {
		return Decision{Verdict: VerdictFatal}
	}
	if attemptIndex >= p.opts.MaxAttempts {
		return Decision{Verdict: VerdictAttemptsExhausted}
	}
	if p.opts.MaxElapsed > 0 && elapsed >= p.opts.MaxElapsed {
		return Decision{Verdict: VerdictElapsedExhausted}
	}

	unjittered := p.backoff(attemptIndex)
	return Decision{
		Retry:      true,
		Delay:      p.jitter(unjittered),
		Unjittered: unjittered,
		Verdict:    VerdictRetry,
	}
}

// backoff computes min(BaseDelay * Multiplier^attempt, MaxDelay). The growth
// is applied iteratively so the cap is hit before float conversion can
// overflow.
func (p *Policy) backoff(attempt int) time.Duration {
	d := float64(p.opts.BaseDelay)
	limit := float64(p.opts.MaxDelay)
	for i := 0; i < attempt; i++ {
		d *= p.opts.Multiplier
		if d >= limit {
			return p.opts.MaxDelay
		}
	}
	if d >= limit {
		return p.opts.MaxDelay
	}
	return time.Duration(d)
}

// jitter perturbs d by a uniform fraction in [-JitterFraction, +JitterFraction],
// clamped so the result never exceeds MaxDelay.
func (p *Policy) jitter(d time.Duration) time.Duration {
	if p.opts.JitterFraction == 0 || d <= 0 {
		return d
	}
	f := 1 + p.opts.JitterFraction*(2*p.rand()-1)
	jittered := time.Duration(float64(d) * f)
	if jittered > p.opts.MaxDelay {
		return p.opts.MaxDelay
	}
	if jittered < 0 {
		return 0
	}
	return jittered
}

// cryptoFloat returns a uniform value in [0, 1) from crypto/rand, falling
// back to the midpoint if the entropy source fails so callers never stall.
func cryptoFloat() float64 {
	const resolution = 1 << 53
	n, err := rand.Int(rand.Reader, big.NewInt(resolution))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / resolution
}
