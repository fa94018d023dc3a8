package service

import (
	"sync"
	"sync/atomic"

	"github.com/flowpulse/flowpulse/internal/domain/model"
	"github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/observability/statsd"
)

// recoveryBuffer sits between the poll loop and the stream consumer. It
// holds at most one pending state, so states observed while the consumer is
// detached coalesce into the latest known truth, and it keeps a cursor of
// the last delivered sequence number so nothing already delivered is ever
// repeated, even across a catch-up fetch.
//
// The buffer also owns the execution's sequence counter. The regular poll
// path and the post-fault catch-up path draw from the same counter, which is
// what keeps cursor comparison meaningful between them.
type recoveryBuffer struct {
	sink   statsd.Sink
	seq    atomic.Uint64
	signal chan struct{}

	mu               sync.Mutex
	pending          model.ExecutionState
	hasPending       bool
	pendingRecovered bool
	cursor           uint64
	last             model.ExecutionState
	hasLast          bool
	catchUp          bool
}

func newRecoveryBuffer(sink statsd.Sink) *recoveryBuffer {
	return &recoveryBuffer{
		sink:   sink,
		signal: make(chan struct{}, 1),
	}
}

// nextSequence reserves the next sequence number for a freshly observed
// state. Sequence numbers start at 1.
func (b *recoveryBuffer) nextSequence() uint64 {
	return b.seq.Add(1)
}

// publish offers one state for delivery. States at or below the delivery
// cursor are dropped as duplicates; an undelivered pending state is replaced
// by a newer one, keeping most recent truth over complete history. Returns
// false when the state was dropped.
func (b *recoveryBuffer) publish(state model.ExecutionState, recovered bool) bool {
	b.mu.Lock()
	if state.Sequence <= b.cursor || (b.hasPending && state.Sequence <= b.pending.Sequence) {
		b.mu.Unlock()
		metrics.EmitStreamDrop(b.sink, metrics.DropDuplicate)
		return false
	}
	superseded := b.hasPending
	b.pending = state
	b.hasPending = true
	b.pendingRecovered = recovered
	b.mu.Unlock()

	if superseded {
		metrics.EmitStreamDrop(b.sink, metrics.DropSuperseded)
	}
	select {
	case b.signal <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns the pending state, advancing the delivery cursor.
// The second return marks states that arrived through the catch-up path.
func (b *recoveryBuffer) take() (model.ExecutionState, bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasPending {
		return model.ExecutionState{}, false, false
	}
	state := b.pending
	recovered := b.pendingRecovered
	b.hasPending = false
	b.cursor = state.Sequence
	b.last = state
	b.hasLast = true
	return state, recovered, true
}

// wait returns the channel pinged whenever a state becomes available. Wakeups
// may be spurious; callers re-check take.
func (b *recoveryBuffer) wait() <-chan struct{} {
	return b.signal
}

// cursorValue returns the last delivered sequence number.
func (b *recoveryBuffer) cursorValue() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// lastDelivered returns the most recently delivered state, if any.
func (b *recoveryBuffer) lastDelivered() (model.ExecutionState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

// flagCatchUp marks that the next fetch should run immediately and be
// treated as a catch-up, set when a poll cycle faults.
func (b *recoveryBuffer) flagCatchUp() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchUp = true
}

// consumeCatchUp reports and clears the pending catch-up flag.
func (b *recoveryBuffer) consumeCatchUp() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.catchUp
	b.catchUp = false
	return v
}

// catchUpPending reports the flag without clearing it.
func (b *recoveryBuffer) catchUpPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.catchUp
}
