package circuit

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Breaker is applied to every breaker the registry creates.
	Breaker Options
	// Logger receives transition logs. Defaults to slog.Default().
	Logger *slog.Logger
	// OnPhaseChange, when set, observes every breaker transition. It is
	// called synchronously from inside the transition and must not block.
	OnPhaseChange func(endpoint string, from, to Phase)
}

// Registry owns the breakers for a set of remote endpoints, creating each on
// first use. It is an explicitly constructed value handed to whoever needs
// breaker access; there is no process-wide instance.
type Registry struct {
	opts   RegistryOptions
	logger *slog.Logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry constructs a Registry, validating the breaker options.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if err := opts.Breaker.Validate(); err != nil {
		return nil, fmt.Errorf("validate breaker options: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		opts:     opts,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}, nil
}

// Get returns the breaker guarding endpoint, creating it on first use. Every
// caller passing the same endpoint shares one breaker instance.
func (r *Registry) Get(endpoint string) *Breaker {
	r.mu.RLock()
	breaker, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if ok {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if breaker, ok = r.breakers[endpoint]; ok {
		return breaker
	}

	breaker = newBreaker(endpoint, r.opts.Breaker, r.logger, r.opts.OnPhaseChange)
	r.breakers[endpoint] = breaker
	r.logger.Debug("created circuit breaker", "endpoint", endpoint)
	return breaker
}

// Snapshots returns the current state of every known breaker, ordered by
// endpoint for stable output.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		snapshots = append(snapshots, b.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Endpoint < snapshots[j].Endpoint
	})
	return snapshots
}
