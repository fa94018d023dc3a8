package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// pollOutcome is how the poll loop reports its end to the stream: a terminal
// error, a cancellation, or neither (a terminal state was delivered through
// the buffer).
type pollOutcome struct {
	err      error
	canceled bool
}

// poller drives the poll loop for one tracked execution. Everything it owns
// (retry bookkeeping, pacing schedule, sequence counter) is exclusive to its
// goroutine; the circuit breaker is the only state shared with other
// executions.
type poller struct {
	handle   model.ExecutionHandle
	endpoint string
	fetcher  core.StatusFetcher
	breaker  *circuit.Breaker
	policy   *retry.Policy
	schedule *pacing.Schedule
	buf      *recoveryBuffer
	logger   *slog.Logger
	sink     statsd.Sink
	time     data.TimeProvider
	sleep    SleepFunc
}

// run executes poll cycles until a terminal state, a terminal error, or
// cancellation. The retry budget covers one unbroken failure streak; any
// successfully decoded status resets it.
func (p *poller) run(ctx context.Context) pollOutcome {
	failures := 0
	var streakStart time.Time
	var lastErr error

	for {
		recovered := p.buf.consumeCatchUp()
		start := p.time.Now()
		state, err := p.cycle(ctx)
		attempt := model.PollAttempt{
			Index:    failures,
			Interval: p.time.Now().Sub(start),
			Outcome:  attemptOutcome(err),
		}

		if err == nil {
			state.Sequence = p.buf.nextSequence()
			p.buf.publish(state, recovered)
			metrics.EmitPollCycle(p.sink, metrics.PollMetric{
				Endpoint: p.endpoint,
				Kind:     string(state.Kind),
				Result:   metrics.ResultSuccess,
				Duration: attempt.Interval,
			})
			p.logger.DebugContext(ctx, "execution state observed",
				"execution_id", p.handle.ExecutionID,
				"kind", state.Kind,
				"sequence", state.Sequence,
				"remote_status", state.RemoteStatus,
			)
			if state.Terminal() {
				p.logger.InfoContext(ctx, "execution reached terminal state",
					"execution_id", p.handle.ExecutionID,
					"kind", state.Kind,
					"sequence", state.Sequence,
				)
				return pollOutcome{}
			}
			if state.Kind != model.StatusUnknown {
				failures = 0
				streakStart = time.Time{}
				lastErr = nil
				if sleepErr := p.sleep(ctx, p.schedule.Observe(state.Kind)); sleepErr != nil {
					return p.contextOutcome(ctx, lastErr, failures, streakStart)
				}
				continue
			}
			// An unrecognized status was emitted, but the loop cannot tell
			// whether the remote is making progress, so the attempt draws
			// down the retry budget like a transient failure.
			err = apperrors.Transientf("remote reported unrecognized status %q", state.RemoteStatus)
			attempt.Outcome = model.AttemptTransient
		} else {
			if ctx.Err() != nil {
				return p.contextOutcome(ctx, err, failures, streakStart)
			}
			if apperrors.IsCanceled(err) {
				// A coalesced flight was canceled by another caller; our own
				// context is alive, so the attempt is retryable.
				err = apperrors.Wrap(err, apperrors.ErrCodeTransient, "status fetch interrupted by a coalesced caller")
			}
			metrics.EmitPollCycle(p.sink, metrics.PollMetric{
				Endpoint: p.endpoint,
				Result:   failureResult(err),
				Duration: attempt.Interval,
				Err:      err,
			})
		}

		if streakStart.IsZero() {
			streakStart = start
		}
		elapsed := p.time.Now().Sub(streakStart)
		decision := p.policy.Decide(err, attempt.Index, elapsed)
		failures++
		lastErr = err

		if !decision.Retry {
			if decision.Exhausted() {
				termErr := apperrors.RetryExhausted(failures, elapsed, err)
				p.logger.WarnContext(ctx, "retry budget exhausted",
					"execution_id", p.handle.ExecutionID,
					"attempts", failures,
					"elapsed_ms", elapsed.Milliseconds(),
					"verdict", decision.Verdict,
					"error", err,
				)
				return pollOutcome{err: termErr}
			}
			p.logger.WarnContext(ctx, "poll failed with non-retryable error",
				"execution_id", p.handle.ExecutionID,
				"error", err,
			)
			return pollOutcome{err: err}
		}

		p.logger.WarnContext(ctx, "poll failed, retrying",
			"execution_id", p.handle.ExecutionID,
			"attempt", failures,
			"outcome", attempt.Outcome,
			"interval_ms", attempt.Interval.Milliseconds(),
			"delay_ms", decision.Delay.Milliseconds(),
			"error", err,
		)
		if p.buf.catchUpPending() {
			// A faulted cycle resumes with an immediate catch-up fetch
			// instead of waiting out the backoff.
			continue
		}
		metrics.EmitRetryDelay(p.sink, p.endpoint, failures, decision.Delay)
		if sleepErr := p.sleep(ctx, decision.Delay); sleepErr != nil {
			return p.contextOutcome(ctx, err, failures, streakStart)
		}
	}
}

// cycle runs one breaker-gated status fetch.
func (p *poller) cycle(ctx context.Context) (model.ExecutionState, error) {
	report, allowErr := p.breaker.Allow()
	if allowErr != nil {
		// The breaker refused without a remote call; the retry policy treats
		// this like any other retryable failure.
		return model.ExecutionState{}, allowErr
	}
	return p.fetchDetached(ctx, report)
}

type fetchResult struct {
	state model.ExecutionState
	err   error
}

// fetchDetached issues the status fetch in its own goroutine so a canceled
// cycle abandons the result without tearing down the connection mid-flight.
// The detached call runs on an uncancelable context, stays bounded by the
// HTTP client's own timeout, and still reports its outcome to the breaker.
func (p *poller) fetchDetached(ctx context.Context, report func(success bool)) (model.ExecutionState, error) {
	resultCh := make(chan fetchResult, 1)
	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		state, err := p.guardedFetch(fetchCtx)
		report(endpointHealthy(err))
		resultCh <- fetchResult{state: state, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.state, res.err
	case <-ctx.Done():
		return model.ExecutionState{}, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "status poll canceled")
	}
}

// guardedFetch runs one status fetch, converting a panic inside the fetch or
// its decoding into a retryable fault and flagging the recovery path so the
// next fetch runs immediately as a catch-up.
func (p *poller) guardedFetch(ctx context.Context) (state model.ExecutionState, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.buf.flagCatchUp()
			err = apperrors.Transientf("poll cycle fault: %v", r)
			p.logger.Error("poll cycle fault, scheduling catch-up fetch",
				"execution_id", p.handle.ExecutionID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	return p.fetcher.FetchStatus(ctx, p.handle)
}

// contextOutcome resolves the loop's end once its context is done. A spent
// deadline surfaces as retry exhaustion; plain cancellation is a completion,
// not a failure.
func (p *poller) contextOutcome(ctx context.Context, lastErr error, attempts int, streakStart time.Time) pollOutcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if lastErr != nil {
			return pollOutcome{err: apperrors.RetryExhausted(attempts, p.time.Now().Sub(streakStart), lastErr)}
		}
		return pollOutcome{err: apperrors.Wrap(ctx.Err(), apperrors.ErrCodeRetryExhausted, "tracking deadline exceeded")}
	}
	return pollOutcome{canceled: true}
}

// endpointHealthy reports whether an attempt outcome counts as success for
// circuit accounting. A fatal remote answer still proves the endpoint is
// reachable; only transient failures indicate endpoint trouble.
func endpointHealthy(err error) bool {
	return err == nil || !apperrors.IsTransient(err)
}

func failureResult(err error) string {
	switch {
	case apperrors.IsCircuitOpen(err):
		return metrics.ResultCircuitOpen
	case apperrors.IsFatal(err):
		return metrics.ResultFatal
	default:
		return metrics.ResultTransient
	}
}

// attemptOutcome classifies a try for the loop's attempt record. Circuit
// refusals count as transient: they draw the same retry budget.
func attemptOutcome(err error) model.AttemptOutcome {
	switch {
	case err == nil:
		return model.AttemptSuccess
	case apperrors.IsFatal(err):
		return model.AttemptFatal
	default:
		return model.AttemptTransient
	}
}

// SleepFunc suspends until the duration passes or the context is done,
// returning the context's error in the latter case. Tests inject a recording
// implementation so pacing and backoff assertions run without real waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the production SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
