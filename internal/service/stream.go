package service

import (
	"context"
	"errors"
	"sync"

	"github.com/flowpulse/flowpulse/internal/domain/model"
	"github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/observability/statsd"
)

// Completion sentinels returned by ExecutionStream.Next once no further
// states will be delivered.
var (
	// ErrStreamDone signals a normal end of tracking: a terminal state was
	// delivered, or the stream's terminal error has already been returned.
	ErrStreamDone = errors.New("execution stream done")
	// ErrStreamCanceled signals the stream was canceled by its consumer or
	// its tracking context. Cancellation is a completion, not a failure.
	ErrStreamCanceled = errors.New("execution stream canceled")
)

// ExecutionStream is a lazy, cancellable, finite sequence of ExecutionState
// for one tracked execution. States arrive through the recovery buffer, so a
// consumer that falls behind observes the most recent truth rather than the
// complete history.
//
// The stream is single-consumer: Next must not be called concurrently.
// It is not restartable; re-tracking the same handle requires a new Track
// call.
type ExecutionStream struct {
	handle model.ExecutionHandle
	buf    *recoveryBuffer
	sink   statsd.Sink

	cancelPoll context.CancelFunc
	cancelOnce sync.Once
	canceledCh chan struct{}
	done       chan struct{}

	mu            sync.Mutex
	canceled      bool
	termErr       error
	termDelivered bool
}

func newExecutionStream(handle model.ExecutionHandle, buf *recoveryBuffer, cancelPoll context.CancelFunc, sink statsd.Sink) *ExecutionStream {
	return &ExecutionStream{
		handle:     handle,
		buf:        buf,
		sink:       sink,
		cancelPoll: cancelPoll,
		canceledCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Next blocks until the next state, the stream's terminal error, or a
// completion signal. After a terminal state it returns ErrStreamDone; after
// Cancel it returns ErrStreamCanceled. An error on the passed context is
// returned as-is and does not end the stream.
func (s *ExecutionStream) Next(ctx context.Context) (model.ExecutionState, error) {
	for {
		if err := ctx.Err(); err != nil {
			return model.ExecutionState{}, err
		}
		// Cancellation wins over undelivered states: a canceled consumer
		// receives no further states.
		if s.isCanceled() {
			return model.ExecutionState{}, ErrStreamCanceled
		}
		if state, recovered, ok := s.buf.take(); ok {
			metrics.EmitStreamState(s.sink, string(state.Kind), recovered)
			return state, nil
		}

		select {
		case <-ctx.Done():
			return model.ExecutionState{}, ctx.Err()
		case <-s.canceledCh:
			return model.ExecutionState{}, ErrStreamCanceled
		case <-s.buf.wait():
			// A state was published; loop back and take it.
		case <-s.done:
			return s.complete()
		}
	}
}

// Cancel stops tracking. The in-flight poll, if any, is discarded and no
// further cycles are scheduled. Cancel is idempotent; afterwards Next
// reports ErrStreamCanceled.
func (s *ExecutionStream) Cancel() {
	s.cancelOnce.Do(func() {
		s.mu.Lock()
		s.canceled = true
		s.mu.Unlock()
		close(s.canceledCh)
		s.cancelPoll()
	})
}

// Handle returns the execution handle this stream tracks.
func (s *ExecutionStream) Handle() model.ExecutionHandle {
	return s.handle
}

// Last returns the most recently delivered state, if any.
func (s *ExecutionStream) Last() (model.ExecutionState, bool) {
	return s.buf.lastDelivered()
}

// complete resolves Next's return once the poll loop has exited. The
// sequence ends with either a terminal state (already delivered through the
// buffer), exactly one terminal error, or a cancellation signal; never more
// than one of those.
func (s *ExecutionStream) complete() (model.ExecutionState, error) {
	if s.isCanceled() {
		return model.ExecutionState{}, ErrStreamCanceled
	}
	// A state published between the last take and the loop's exit is still
	// owed to the consumer.
	if state, recovered, ok := s.buf.take(); ok {
		metrics.EmitStreamState(s.sink, string(state.Kind), recovered)
		return state, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.termErr != nil && !s.termDelivered {
		s.termDelivered = true
		return model.ExecutionState{}, s.termErr
	}
	return model.ExecutionState{}, ErrStreamDone
}

// finish records the poll loop's outcome and wakes any blocked Next caller.
// Called exactly once, when the loop exits.
func (s *ExecutionStream) finish(outcome pollOutcome) {
	s.mu.Lock()
	s.termErr = outcome.err
	if outcome.canceled {
		s.canceled = true
	}
	s.mu.Unlock()
	close(s.done)
}

func (s *ExecutionStream) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}
