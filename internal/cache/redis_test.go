package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisUnavailableDegradesToCompute(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedis[map[string]float64](client, "test")
	ctx := context.Background()

	var calls int
	compute := func(context.Context) map[string]float64 {
		calls++
		return map[string]float64{"nifty_50": 25000}
	}

	v := c.GetOrCompute(ctx, "group:indices", time.Minute, compute)
	assert.Equal(t, 25000.0, v["nifty_50"])
	c.GetOrCompute(ctx, "group:indices", time.Minute, compute)
	assert.Equal(t, 2, calls)
	assert.Error(t, c.Clear(ctx))
}

func TestRedisWrapKey(t *testing.T) {
	c := NewRedis[int](nil, "")
	assert.Equal(t, "econsnap:group:currency", c.wrapKey("group:currency"))
}

type quoteGroup struct {
	Values    map[string]decimal.Decimal `json:"values"`
	Sources   []string                   `json:"sources"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisHitWithinTTLRoundTripsDecimals(t *testing.T) {
	mr, client := newMiniRedis(t)
	var hits, misses int
	c := NewRedis[quoteGroup](client, "econsnap", WithObserver(func(_ string, hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}))
	ctx := context.Background()

	fetchedAt := time.Date(2025, 6, 2, 5, 30, 0, 0, time.UTC)
	var calls int
	compute := func(context.Context) quoteGroup {
		calls++
		return quoteGroup{
			Values:    map[string]decimal.Decimal{"usd_inr": decimal.RequireFromString("86.9125")},
			Sources:   []string{"alphavantage"},
			FetchedAt: fetchedAt,
		}
	}

	first := c.GetOrCompute(ctx, "group:currency", time.Hour, compute)
	second := c.GetOrCompute(ctx, "group:currency", time.Hour, compute)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.True(t, first.Values["usd_inr"].Equal(second.Values["usd_inr"]), "decimal changed: %s", second.Values["usd_inr"])
	assert.Equal(t, "86.9125", second.Values["usd_inr"].String())
	assert.Equal(t, []string{"alphavantage"}, second.Sources)
	assert.True(t, fetchedAt.Equal(second.FetchedAt))

	assert.True(t, mr.Exists("econsnap:group:currency"))
	ttl := mr.TTL("econsnap:group:currency")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisRecomputesAfterTTL(t *testing.T) {
	mr, client := newMiniRedis(t)
	c := NewRedis[int](client, "econsnap")
	ctx := context.Background()

	var calls int
	compute := func(context.Context) int {
		calls++
		return calls
	}

	require.Equal(t, 1, c.GetOrCompute(ctx, "group:indices", 5*time.Minute, compute))
	mr.FastForward(4 * time.Minute)
	assert.Equal(t, 1, c.GetOrCompute(ctx, "group:indices", 5*time.Minute, compute))
	mr.FastForward(time.Minute)
	assert.Equal(t, 2, c.GetOrCompute(ctx, "group:indices", 5*time.Minute, compute))
	assert.Equal(t, 2, calls)
}

func TestRedisClearRemovesOnlyPrefixedKeys(t *testing.T) {
	mr, client := newMiniRedis(t)
	c := NewRedis[int](client, "econsnap")
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "keep"))

	var calls int
	compute := func(context.Context) int {
		calls++
		return calls
	}
	for _, key := range []string{"group:indices", "group:currency", "group:commodities"} {
		c.GetOrCompute(ctx, key, time.Hour, compute)
	}
	require.Equal(t, 3, calls)

	require.NoError(t, c.Clear(ctx))

	assert.False(t, mr.Exists("econsnap:group:indices"))
	assert.False(t, mr.Exists("econsnap:group:currency"))
	assert.True(t, mr.Exists("other:key"))

	assert.Equal(t, 4, c.GetOrCompute(ctx, "group:indices", time.Hour, compute))
}
