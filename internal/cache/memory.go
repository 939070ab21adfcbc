package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) fresh(now time.Time) bool {
	return now.Sub(e.insertedAt) < e.ttl
}

// Memory is an in-process cache. Concurrent misses on one key share a single compute.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	flight  singleflight.Group
	opts    options
}

// NewMemory constructs an empty in-process cache.
func NewMemory[V any](opts ...Option) *Memory[V] {
	return &Memory[V]{
		entries: make(map[string]entry[V]),
		opts:    buildOptions("memory_cache", opts),
	}
}

// GetOrCompute returns the cached value when fresh, otherwise runs compute and stores its result.
func (m *Memory[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc[V]) V {
	if v, ok := m.lookup(key); ok {
		m.opts.observe(key, true)
		m.opts.logger.Debug().Str("key", key).Msg("cache hit")
		return v
	}

	m.opts.observe(key, false)
	res, _, _ := m.flight.Do(key, func() (any, error) {
		if v, ok := m.lookup(key); ok {
			return v, nil
		}
		m.opts.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("cache miss, computing")
		v := compute(ctx)
		m.mu.Lock()
		m.entries[key] = entry[V]{value: v, insertedAt: m.opts.now(), ttl: ttl}
		m.mu.Unlock()
		return v, nil
	})
	return res.(V)
}

// Clear drops every entry.
func (m *Memory[V]) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]entry[V])
	m.mu.Unlock()
	m.opts.logger.Info().Msg("cache cleared")
	return nil
}

// Len reports the number of stored entries, fresh or not.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory[V]) lookup(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !e.fresh(m.opts.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}
