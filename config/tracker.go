package config

import (
	"strings"
	"time"

	"github.com/flowpulse/flowpulse/internal/circuit"
	"github.com/flowpulse/flowpulse/internal/domain/pacing"
	"github.com/flowpulse/flowpulse/internal/domain/retry"
)

// TrackerConfig contains polling, retry, and circuit breaker tuning for
// execution tracking.
type TrackerConfig struct {
	// Endpoint names the remote status API for breaker identity and metric tags.
	Endpoint string `env:"ENDPOINT" envDefault:"remote"`

	// MinInterval is the poll cadence right after a trigger or status change.
	MinInterval time.Duration `env:"MIN_INTERVAL" envDefault:"1s"`

	// MaxInterval caps the grown poll cadence.
	MaxInterval time.Duration `env:"MAX_INTERVAL" envDefault:"30s"`

	// IntervalGrowth multiplies the cadence per consecutive Running observation.
	IntervalGrowth float64 `env:"INTERVAL_GROWTH" envDefault:"1.5"`

	// RetryBaseDelay is the unjittered delay after the first failed poll.
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"2s"`

	// RetryMaxDelay caps the backoff growth.
	RetryMaxDelay time.Duration `env:"RETRY_MAX_DELAY" envDefault:"60s"`

	// RetryMultiplier grows the delay per failed attempt.
	RetryMultiplier float64 `env:"RETRY_MULTIPLIER" envDefault:"2"`

	// RetryMaxAttempts caps retries per execution. Zero disables retrying.
	RetryMaxAttempts int `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`

	// RetryMaxElapsed caps cumulative retry time. Zero means unbounded.
	RetryMaxElapsed time.Duration `env:"RETRY_MAX_ELAPSED" envDefault:"10m"`

	// RetryJitter perturbs each delay by a uniform fraction in [0, 0.5].
	RetryJitter float64 `env:"RETRY_JITTER" envDefault:"0.2"`

	// BreakerFailureThreshold is the consecutive-failure count that opens the breaker.
	BreakerFailureThreshold uint32 `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`

	// BreakerOpenDuration is how long an open breaker refuses attempts.
	BreakerOpenDuration time.Duration `env:"BREAKER_OPEN_DURATION" envDefault:"30s"`

	// BreakerTrialBudget is how many attempts may pass while half-open.
	BreakerTrialBudget uint32 `env:"BREAKER_TRIAL_BUDGET" envDefault:"1"`

	// Deadline caps how long one execution may be tracked. Zero means unbounded.
	Deadline time.Duration `env:"DEADLINE" envDefault:"0"`
}

// Sanitize applies guardrails to tracker configuration values.
func (t *TrackerConfig) Sanitize() {
	if t.Endpoint = strings.TrimSpace(t.Endpoint); t.Endpoint == "" {
		t.Endpoint = "remote"
	}

	if t.MinInterval <= 0 {
		t.MinInterval = time.Second
	}
	if t.MaxInterval < t.MinInterval {
		t.MaxInterval = t.MinInterval
	}
	if t.IntervalGrowth < 1 {
		t.IntervalGrowth = 1
	}

	if t.RetryBaseDelay <= 0 {
		t.RetryBaseDelay = 2 * time.Second
	}
	if t.RetryMaxDelay < t.RetryBaseDelay {
		t.RetryMaxDelay = t.RetryBaseDelay
	}
	if t.RetryMultiplier < 1 {
		t.RetryMultiplier = 1
	}
	if t.RetryMaxAttempts < 0 {
		t.RetryMaxAttempts = 0
	}
	if t.RetryMaxElapsed < 0 {
		t.RetryMaxElapsed = 0
	}
	if t.RetryJitter < 0 {
		t.RetryJitter = 0
	}
	if t.RetryJitter > 0.5 {
		t.RetryJitter = 0.5
	}

	if t.BreakerFailureThreshold < 1 {
		t.BreakerFailureThreshold = 1
	}
	if t.BreakerOpenDuration <= 0 {
		t.BreakerOpenDuration = 30 * time.Second
	}
	if t.BreakerTrialBudget < 1 {
		t.BreakerTrialBudget = 1
	}

	if t.Deadline < 0 {
		t.Deadline = 0
	}
}

// RetryOptions maps the tracker settings onto the retry domain options.
func (t *TrackerConfig) RetryOptions() retry.Options {
	return retry.Options{
		BaseDelay:      t.RetryBaseDelay,
		MaxDelay:       t.RetryMaxDelay,
		Multiplier:     t.RetryMultiplier,
		MaxAttempts:    t.RetryMaxAttempts,
		MaxElapsed:     t.RetryMaxElapsed,
		JitterFraction: t.RetryJitter,
	}
}

// PacingOptions maps the tracker settings onto the pacing domain options.
func (t *TrackerConfig) PacingOptions() pacing.Options {
	return pacing.Options{
		MinInterval: t.MinInterval,
		MaxInterval: t.MaxInterval,
		Growth:      t.IntervalGrowth,
	}
}

// BreakerOptions maps the tracker settings onto the circuit breaker options.
func (t *TrackerConfig) BreakerOptions() circuit.Options {
	return circuit.Options{
		FailureThreshold: t.BreakerFailureThreshold,
		OpenDuration:     t.BreakerOpenDuration,
		TrialBudget:      t.BreakerTrialBudget,
	}
}
