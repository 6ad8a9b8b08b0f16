package circuitbreaker

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Registry manages one Breaker per catalog host.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewRegistry creates a new circuit breaker registry with the given config.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   cfg,
	}
}

// Get returns the breaker for host, or nil if none exists.
func (r *Registry) Get(host string) *Breaker {
	r.mu.RLock()
	b := r.breakers[host]
	r.mu.RUnlock()
	return b
}

// GetOrCreate returns the breaker for host, creating one if needed.
func (r *Registry) GetOrCreate(host string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[host]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[host]; ok {
		return b
	}
	b = NewBreaker(r.config)
	r.breakers[host] = b
	return b
}

// States returns a sorted snapshot of host -> state.
func (r *Registry) States() []HostState {
	r.mu.RLock()
	hosts := slices.Sorted(maps.Keys(r.breakers))
	out := make([]HostState, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, HostState{Host: h, State: r.breakers[h].State()})
	}
	r.mu.RUnlock()
	return out
}

// HostState pairs a host with its breaker state.
type HostState struct {
	Host  string
	State State
}

// EvictStale removes breakers not used since cutoff.
// Stale keys are collected under the read lock and deleted under the write lock.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.RLock()
	var stale []string
	for k, b := range r.breakers {
		if b.LastUsed().Before(cutoff) {
			stale = append(stale, k)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for _, k := range stale {
		if b, ok := r.breakers[k]; ok && b.LastUsed().Before(cutoff) {
			delete(r.breakers, k)
			evicted++
		}
	}
	return evicted
}
