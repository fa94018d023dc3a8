// Package pacing selects the adaptive poll interval for one tracked
// execution: long-running jobs are polled less and less often, while any
// status change snaps the cadence back to the minimum.
package pacing

import (
	"fmt"
	"time"

	"github.com/flowpulse/flowpulse/internal/domain/model"
)

// Options fully specifies an adaptive interval schedule.
type Options struct {
	// MinInterval is the cadence after a trigger or any status change.
	MinInterval time.Duration
	// MaxInterval caps the grown cadence.
	MaxInterval time.Duration
	// Growth multiplies the interval per consecutive Running observation.
	// Must be at least 1; 1 disables growth.
	Growth float64
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.MinInterval <= 0 {
		return fmt.Errorf("min interval must be positive, got %s", o.MinInterval)
	}
	if o.MaxInterval < o.MinInterval {
		return fmt.Errorf("max interval %s must not be below min interval %s", o.MaxInterval, o.MinInterval)
	}
	if o.Growth < 1 {
		return fmt.Errorf("growth must be at least 1, got %g", o.Growth)
	}
	return nil
}

// DefaultOptions returns the stock cadence: poll every second at first,
// backing off toward half a minute on long-running jobs.
func DefaultOptions() Options {
	return Options{
		MinInterval: time.Second,
		MaxInterval: 30 * time.Second,
		Growth:      1.5,
	}
}

// Schedule tracks the adaptive interval for one execution. It is owned by a
// single poller and is not safe for concurrent use.
type Schedule struct {
	opts     Options
	lastKind model.StatusKind
	streak   int
	current  time.Duration
}

// NewSchedule constructs a Schedule, validating the option ranges.
func NewSchedule(opts Options) (*Schedule, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validate pacing options: %w", err)
	}
	return &Schedule{
		opts:    opts,
		current: opts.MinInterval,
	}, nil
}

// Observe records one successfully fetched status and returns the interval
// to wait before the next poll.
//
// Consecutive Running observations grow the interval multiplicatively up to
// MaxInterval. Any change of status kind resets the interval to MinInterval
// so rapid follow-up transitions are seen quickly. Non-Running kinds pin the
// interval to MinInterval: a Waiting job can resume at any moment.
func (s *Schedule) Observe(kind model.StatusKind) time.Duration {
	if kind == s.lastKind {
		s.streak++
	} else {
		s.lastKind = kind
		s.streak = 1
		s.current = s.opts.MinInterval
	}

	if kind != model.StatusRunning {
		s.current = s.opts.MinInterval
		return s.current
	}

	if s.streak > 1 {
		grown := time.Duration(float64(s.current) * s.opts.Growth)
		if grown > s.opts.MaxInterval || grown < s.current {
			grown = s.opts.MaxInterval
		}
		s.current = grown
	}
	return s.current
}

// Current returns the interval the schedule would wait right now.
func (s *Schedule) Current() time.Duration {
	return s.current
}

// Streak returns how many consecutive observations shared the last kind.
func (s *Schedule) Streak() int {
	return s.streak
}
