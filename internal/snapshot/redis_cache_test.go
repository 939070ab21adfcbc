package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econ-snapshot/internal/cache"
	"econ-snapshot/internal/fetcher"
)

func TestBuildServesGroupsFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	market, err := ParseMarketHours("Asia/Kolkata", "09:15", "15:30")
	require.NoError(t, err)

	yahoo := &fakeSource{name: "yahoo", values: map[string]float64{"^NSEI": 24850.55, "GC=F": 3350.1}}
	av := &fakeSource{name: "alphavantage", values: map[string]float64{"USD:INR": 86.9125}}

	newAssembler := func() *Assembler {
		a, err := NewAssembler(Options{
			Fields:  testFields(),
			Sources: []fetcher.Source{yahoo, av},
			Cache:   cache.NewRedis[GroupResult](client, "econsnap"),
			TTL: map[string]time.Duration{
				"indices": 5 * time.Minute, "currency": time.Hour,
				"commodities": 15 * time.Minute, "indicators": 24 * time.Hour,
			},
			Market: market,
			Now:    func() time.Time { return sessionTime },
		}, zerolog.Nop())
		require.NoError(t, err)
		return a
	}

	ctx := context.Background()
	first := newAssembler().Build(ctx)
	// A second process sharing the same redis reuses the cached groups.
	second := newAssembler().Build(ctx)

	assert.Equal(t, 2, yahoo.calls)
	assert.Equal(t, 1, av.calls)
	for _, name := range []string{"nifty_50", "gold_usd", "usd_inr"} {
		assert.True(t, first.Values[name].Equal(second.Values[name]), "%s: %s vs %s", name, first.Values[name], second.Values[name])
		assert.True(t, second.Live[name], name)
	}
	assert.Equal(t, "86.9125", second.Values["usd_inr"].String())
	assert.Equal(t, first.Sources, second.Sources)
	assert.True(t, mr.Exists("econsnap:group:currency"))

	mr.FastForward(5 * time.Minute)
	newAssembler().Build(ctx)
	assert.Equal(t, 3, yahoo.calls, "indices expire after their TTL")
	assert.Equal(t, 1, av.calls, "currency is still cached")
}
