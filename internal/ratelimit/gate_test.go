package ratelimit

import (
	"context"
	"errors"
	"sync"
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

func TestAcquireSpacesConsecutiveCalls(t *testing.T) {
	gate := New()
	gate.Register("yahoo", Policy{MinInterval: 40 * time.Millisecond})

	ctx := context.Background()
	var returns []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Acquire(ctx, "yahoo"))
		returns = append(returns, time.Now())
		gate.Record("yahoo")
	}

	for i := 1; i < len(returns); i++ {
		assert.GreaterOrEqual(t, returns[i].Sub(returns[i-1]), 40*time.Millisecond)
	}
}

func TestAcquireUnregisteredPassesThrough(t *testing.T) {
	gate := New()
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, gate.Acquire(context.Background(), "unknown"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, -1, gate.Remaining("unknown"))
}

func TestAcquireBudgetExhaustedFailsFast(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)}
	gate := New(WithClock(clock.Now))
	gate.Register("alphavantage", Policy{DailyLimit: 2})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, gate.Acquire(ctx, "alphavantage"))
		gate.Record("alphavantage")
	}
	assert.Equal(t, 0, gate.Remaining("alphavantage"))

	err := gate.Acquire(ctx, "alphavantage")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
}

func TestBudgetResetsOnDateRollover(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	clock := &fakeClock{now: time.Date(2025, 3, 10, 23, 50, 0, 0, ist)}
	gate := New(WithClock(clock.Now), WithLocation(ist))
	gate.Register("worldbank", Policy{DailyLimit: 1})

	ctx := context.Background()
	require.NoError(t, gate.Acquire(ctx, "worldbank"))
	gate.Record("worldbank")
	require.ErrorIs(t, gate.Acquire(ctx, "worldbank"), ErrBudgetExhausted)

	clock.Advance(15 * time.Minute)
	require.NoError(t, gate.Acquire(ctx, "worldbank"))
	assert.Equal(t, 1, gate.Remaining("worldbank"))
}

func TestAcquireHonoursContextCancel(t *testing.T) {
	gate := New()
	gate.Register("yahoo", Policy{MinInterval: time.Hour})

	require.NoError(t, gate.Acquire(context.Background(), "yahoo"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := gate.Acquire(ctx, "yahoo")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBudgetExhausted))
}

func TestWaitObserverAndUsage(t *testing.T) {
	var mu sync.Mutex
	observed := map[string]int{}
	gate := New(WithWaitObserver(func(source string, _ time.Duration) {
		mu.Lock()
		observed[source]++
		mu.Unlock()
	}))
	gate.Register("yahoo", Policy{MinInterval: time.Millisecond, DailyLimit: 10})
	gate.Register("worldbank", Policy{MinInterval: time.Millisecond})

	ctx := context.Background()
	require.NoError(t, gate.Acquire(ctx, "yahoo"))
	gate.Record("yahoo")
	require.NoError(t, gate.Acquire(ctx, "worldbank"))
	gate.Record("worldbank")

	assert.Equal(t, 1, observed["yahoo"])
	usage := gate.Usage()
	require.Len(t, usage, 2)
	assert.Equal(t, "worldbank", usage[0].Source)
	assert.Equal(t, Usage{Source: "yahoo", Day: usage[1].Day, Calls: 1, Limit: 10}, usage[1])
	assert.Equal(t, 9, gate.Remaining("yahoo"))
}
