package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/domain/model"
	"github.com/flowpulse/flowpulse/internal/testutil"
)

func bufferedState(seq uint64, kind model.StatusKind) model.ExecutionState {
	return testutil.NewState().
		WithExecutionID("exec-42").
		WithKind(kind).
		WithSequence(seq).
		Build()
}

func TestRecoveryBuffer_CoalescesToLatest(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	assert.True(t, buf.publish(bufferedState(1, model.StatusRunning), false))
	assert.True(t, buf.publish(bufferedState(2, model.StatusRunning), false))
	assert.True(t, buf.publish(bufferedState(3, model.StatusSuccess), false))

	state, recovered, ok := buf.take()
	require.True(t, ok)
	assert.Equal(t, uint64(3), state.Sequence)
	assert.Equal(t, model.StatusSuccess, state.Kind)
	assert.False(t, recovered)

	_, _, ok = buf.take()
	assert.False(t, ok, "sequences 1 and 2 were superseded, not queued")
}

func TestRecoveryBuffer_NeverRedeliversBehindCursor(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	require.True(t, buf.publish(bufferedState(2, model.StatusRunning), false))
	_, _, ok := buf.take()
	require.True(t, ok)
	assert.Equal(t, uint64(2), buf.cursorValue())

	assert.False(t, buf.publish(bufferedState(2, model.StatusRunning), false), "identical sequence is a duplicate")
	assert.False(t, buf.publish(bufferedState(1, model.StatusRunning), false), "stale sequence is a duplicate")
	_, _, ok = buf.take()
	assert.False(t, ok)

	assert.True(t, buf.publish(bufferedState(3, model.StatusRunning), false))
	state, _, ok := buf.take()
	require.True(t, ok)
	assert.Equal(t, uint64(3), state.Sequence)
}

func TestRecoveryBuffer_PendingDuplicateDropped(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	require.True(t, buf.publish(bufferedState(5, model.StatusWaiting), false))
	assert.False(t, buf.publish(bufferedState(5, model.StatusWaiting), false))
	assert.False(t, buf.publish(bufferedState(4, model.StatusRunning), false))

	state, _, ok := buf.take()
	require.True(t, ok)
	assert.Equal(t, uint64(5), state.Sequence)
	assert.Equal(t, model.StatusWaiting, state.Kind)
}

func TestRecoveryBuffer_SignalWakesWaiter(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	require.True(t, buf.publish(bufferedState(1, model.StatusRunning), false))
	select {
	case <-buf.wait():
	default:
		t.Fatal("expected a pending wakeup after publish")
	}

	// Wakeups may be spurious but takes re-check, so an empty buffer after a
	// stale signal is fine.
	_, _, ok := buf.take()
	assert.True(t, ok)
	_, _, ok = buf.take()
	assert.False(t, ok)
}

func TestRecoveryBuffer_TracksLastDelivered(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	_, ok := buf.lastDelivered()
	assert.False(t, ok)

	require.True(t, buf.publish(bufferedState(1, model.StatusRunning), false))
	_, _, _ = buf.take()
	require.True(t, buf.publish(bufferedState(2, model.StatusSuccess), false))
	_, _, _ = buf.take()

	last, ok := buf.lastDelivered()
	require.True(t, ok)
	assert.Equal(t, uint64(2), last.Sequence)
	assert.Equal(t, model.StatusSuccess, last.Kind)
}

func TestRecoveryBuffer_CatchUpFlag(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	assert.False(t, buf.catchUpPending())
	assert.False(t, buf.consumeCatchUp())

	buf.flagCatchUp()
	assert.True(t, buf.catchUpPending())
	assert.True(t, buf.consumeCatchUp(), "consume reports the flag")
	assert.False(t, buf.consumeCatchUp(), "consume clears the flag")
}

func TestRecoveryBuffer_MarksRecoveredDelivery(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	require.True(t, buf.publish(bufferedState(1, model.StatusRunning), true))
	_, recovered, ok := buf.take()
	require.True(t, ok)
	assert.True(t, recovered)
}

func TestRecoveryBuffer_SequenceCounterIsMonotonic(t *testing.T) {
	t.Parallel()
	buf := newRecoveryBuffer(nil)

	assert.Equal(t, uint64(1), buf.nextSequence())
	assert.Equal(t, uint64(2), buf.nextSequence())
	assert.Equal(t, uint64(3), buf.nextSequence())
}
