package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryHitWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	c := NewMemory[int](WithClock(clock.Now))

	var calls int
	compute := func(context.Context) int {
		calls++
		return calls * 10
	}

	ctx := context.Background()
	assert.Equal(t, 10, c.GetOrCompute(ctx, "group:indices", 5*time.Minute, compute))
	clock.Advance(4*time.Minute + 59*time.Second)
	assert.Equal(t, 10, c.GetOrCompute(ctx, "group:indices", 5*time.Minute, compute))
	assert.Equal(t, 1, calls)
}

func TestMemoryRecomputesAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	c := NewMemory[int](WithClock(clock.Now))

	var calls int
	compute := func(context.Context) int {
		calls++
		return calls
	}

	ctx := context.Background()
	require.Equal(t, 1, c.GetOrCompute(ctx, "k", time.Minute, compute))
	clock.Advance(time.Minute)
	assert.Equal(t, 2, c.GetOrCompute(ctx, "k", time.Minute, compute))
	assert.Equal(t, 2, calls)
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	c := NewMemory[string]()
	ctx := context.Background()

	a := c.GetOrCompute(ctx, "group:currency", time.Hour, func(context.Context) string { return "a" })
	b := c.GetOrCompute(ctx, "group:commodities", time.Hour, func(context.Context) string { return "b" })
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryClear(t *testing.T) {
	c := NewMemory[int]()
	ctx := context.Background()

	var calls int
	compute := func(context.Context) int {
		calls++
		return calls
	}
	c.GetOrCompute(ctx, "k", time.Hour, compute)
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 2, c.GetOrCompute(ctx, "k", time.Hour, compute))
}

func TestMemoryConcurrentMissesShareCompute(t *testing.T) {
	c := NewMemory[int]()
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) int {
		calls.Add(1)
		<-release
		return 7
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrCompute(ctx, "k", time.Hour, compute)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 7, r)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryObserver(t *testing.T) {
	var hits, misses int
	c := NewMemory[int](WithObserver(func(_ string, hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}))
	ctx := context.Background()
	compute := func(context.Context) int { return 1 }

	c.GetOrCompute(ctx, "k", time.Hour, compute)
	c.GetOrCompute(ctx, "k", time.Hour, compute)
	c.GetOrCompute(ctx, "k", time.Hour, compute)
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
}
