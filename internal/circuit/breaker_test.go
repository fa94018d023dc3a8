package circuit

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/flowpulse/flowpulse/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	registry, err := NewRegistry(RegistryOptions{
		Breaker: opts,
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return registry
}

// failTimes reports count failures to the breaker through the two-step flow.
func failTimes(t *testing.T, b *Breaker, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		done, err := b.Allow()
		require.NoError(t, err, "attempt %d should pass through a closed breaker", i+1)
		done(false)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"zero failure threshold", Options{OpenDuration: time.Second, TrialBudget: 1}, "failure threshold must be at least 1"},
		{"zero open duration", Options{FailureThreshold: 5, TrialBudget: 1}, "open duration must be positive"},
		{"zero trial budget", Options{FailureThreshold: 5, OpenDuration: time.Second}, "trial budget must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultOptions().Validate())
	})
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	registry := newTestRegistry(t, DefaultOptions())
	breaker := registry.Get("api.example.com")

	failTimes(t, breaker, 5)
	require.Equal(t, PhaseOpen, breaker.Phase())

	// The next consumer is refused locally with no remote call possible.
	done, err := breaker.Allow()
	require.Nil(t, done)
	require.Error(t, err)
	assert.True(t, apperrors.IsCircuitOpen(err))
	assert.Contains(t, err.Error(), `circuit open for endpoint "api.example.com"`)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	registry := newTestRegistry(t, DefaultOptions())
	breaker := registry.Get("api.example.com")

	failTimes(t, breaker, 4)

	done, err := breaker.Allow()
	require.NoError(t, err)
	done(true)

	// The streak restarted, so four more failures stay below the threshold.
	failTimes(t, breaker, 4)
	assert.Equal(t, PhaseClosed, breaker.Phase())

	failTimes(t, breaker, 1)
	assert.Equal(t, PhaseOpen, breaker.Phase())
}

func TestBreaker_HalfOpenTrialClosesOnSuccess(t *testing.T) {
	registry := newTestRegistry(t, Options{
		FailureThreshold: 2,
		OpenDuration:     40 * time.Millisecond,
		TrialBudget:      1,
	})
	breaker := registry.Get("api.example.com")

	failTimes(t, breaker, 2)
	require.Equal(t, PhaseOpen, breaker.Phase())

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, PhaseHalfOpen, breaker.Phase())

	done, err := breaker.Allow()
	require.NoError(t, err, "half-open breaker should admit one trial")
	done(true)

	assert.Equal(t, PhaseClosed, breaker.Phase())
	assert.Zero(t, breaker.Snapshot().ConsecutiveFailures)
}

func TestBreaker_HalfOpenTrialReopensOnFailure(t *testing.T) {
	registry := newTestRegistry(t, Options{
		FailureThreshold: 2,
		OpenDuration:     40 * time.Millisecond,
		TrialBudget:      1,
	})
	breaker := registry.Get("api.example.com")

	failTimes(t, breaker, 2)
	time.Sleep(60 * time.Millisecond)

	done, err := breaker.Allow()
	require.NoError(t, err)
	done(false)

	assert.Equal(t, PhaseOpen, breaker.Phase())
}

func TestBreaker_HalfOpenBudgetRefusesExtraTrials(t *testing.T) {
	registry := newTestRegistry(t, Options{
		FailureThreshold: 2,
		OpenDuration:     40 * time.Millisecond,
		TrialBudget:      1,
	})
	breaker := registry.Get("api.example.com")

	failTimes(t, breaker, 2)
	time.Sleep(60 * time.Millisecond)

	// First trial holds the budget while in flight.
	done, err := breaker.Allow()
	require.NoError(t, err)

	_, err = breaker.Allow()
	require.Error(t, err)
	assert.True(t, apperrors.IsCircuitOpen(err), "spent trial budget should refuse like an open circuit")

	done(true)
	assert.Equal(t, PhaseClosed, breaker.Phase())
}

func TestBreaker_SnapshotRecordsOpenedAt(t *testing.T) {
	registry := newTestRegistry(t, Options{
		FailureThreshold: 1,
		OpenDuration:     time.Minute,
		TrialBudget:      1,
	})
	breaker := registry.Get("api.example.com")

	before := breaker.Snapshot()
	assert.Equal(t, PhaseClosed, before.Phase)
	assert.True(t, before.OpenedAt.IsZero())

	failTimes(t, breaker, 1)

	after := breaker.Snapshot()
	assert.Equal(t, PhaseOpen, after.Phase)
	assert.False(t, after.OpenedAt.IsZero())
	assert.Equal(t, uint32(1), after.TrialBudget)
	assert.Equal(t, "api.example.com", after.Endpoint)
}

func TestRegistry_SharesBreakerPerEndpoint(t *testing.T) {
	registry := newTestRegistry(t, DefaultOptions())

	a := registry.Get("api.example.com")
	b := registry.Get("api.example.com")
	other := registry.Get("api.other.com")

	assert.Same(t, a, b, "same endpoint must share one breaker")
	assert.NotSame(t, a, other, "endpoints must not share breakers")
}

func TestRegistry_EndpointIsolation(t *testing.T) {
	registry := newTestRegistry(t, Options{
		FailureThreshold: 2,
		OpenDuration:     time.Minute,
		TrialBudget:      1,
	})

	failTimes(t, registry.Get("api.down.com"), 2)

	assert.Equal(t, PhaseOpen, registry.Get("api.down.com").Phase())
	assert.Equal(t, PhaseClosed, registry.Get("api.up.com").Phase())
}

func TestRegistry_ConcurrentGetReturnsOneInstance(t *testing.T) {
	registry := newTestRegistry(t, DefaultOptions())

	const goroutines = 16
	results := make([]*Breaker, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = registry.Get("api.example.com")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestRegistry_Snapshots(t *testing.T) {
	registry := newTestRegistry(t, Options{
		FailureThreshold: 1,
		OpenDuration:     time.Minute,
		TrialBudget:      1,
	})

	registry.Get("b.example.com")
	failTimes(t, registry.Get("a.example.com"), 1)

	snapshots := registry.Snapshots()
	require.Len(t, snapshots, 2)
	assert.Equal(t, "a.example.com", snapshots[0].Endpoint)
	assert.Equal(t, PhaseOpen, snapshots[0].Phase)
	assert.Equal(t, "b.example.com", snapshots[1].Endpoint)
	assert.Equal(t, PhaseClosed, snapshots[1].Phase)
}

func TestRegistry_OnPhaseChangeObserver(t *testing.T) {
	var mu sync.Mutex
	type transition struct {
		endpoint string
		from, to Phase
	}
	var seen []transition

	registry, err := NewRegistry(RegistryOptions{
		Breaker: Options{
			FailureThreshold: 1,
			OpenDuration:     time.Minute,
			TrialBudget:      1,
		},
		Logger: testLogger(),
		OnPhaseChange: func(endpoint string, from, to Phase) {
			mu.Lock()
			seen = append(seen, transition{endpoint, from, to})
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	failTimes(t, registry.Get("api.example.com"), 1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "api.example.com", seen[0].endpoint)
	assert.Equal(t, PhaseClosed, seen[0].from)
	assert.Equal(t, PhaseOpen, seen[0].to)
}

func TestNewRegistry_RejectsInvalidOptions(t *testing.T) {
	_, err := NewRegistry(RegistryOptions{Breaker: Options{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate breaker options")
}
