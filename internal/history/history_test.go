package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econ-snapshot/internal/snapshot"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testSnapshot() (*snapshot.Snapshot, []snapshot.FieldSpec) {
	fields := []snapshot.FieldSpec{
		{
			Name: "inflation_rate", Group: "indicators",
			Baseline: decimal.NewFromFloat(4.9), Min: decimal.NewFromInt(-5), Max: decimal.NewFromInt(25),
			Scale: decimal.NewFromInt(1), Volatility: 0.05,
		},
		{
			Name: "nifty_50", Group: "indices",
			Baseline: decimal.NewFromInt(25000), Min: decimal.NewFromInt(10000), Max: decimal.NewFromInt(45000),
			Scale: decimal.NewFromInt(1), Volatility: 0.04,
		},
	}
	snap := &snapshot.Snapshot{
		Values: map[string]decimal.Decimal{
			"inflation_rate": decimal.NewFromFloat(4.2),
			"nifty_50":       decimal.NewFromInt(24800),
		},
	}
	return snap, fields
}

func monthlySeries(months int) Series {
	s := Series{Field: "x"}
	for k := months; k >= 0; k-- {
		s.Points = append(s.Points, Point{Date: now.AddDate(0, -k, 0), Value: float64(months - k)})
	}
	return s
}

func TestGenerateEndsAtCurrentValueAndIsReproducible(t *testing.T) {
	snap, fields := testSnapshot()

	first := Generate(snap, fields, now, 24, 42)
	second := Generate(snap, fields, now, 24, 42)
	other := Generate(snap, fields, now, 24, 43)

	require.Len(t, first, 2)
	for _, f := range fields {
		series := first[f.Name]
		require.Len(t, series.Points, 25)
		assert.Equal(t, snap.Float(f.Name), series.Points[24].Value)
		assert.Equal(t, now, series.Points[24].Date)
		assert.Equal(t, now.AddDate(0, -24, 0), series.Points[0].Date)
		assert.Equal(t, series, second[f.Name])
		assert.NotEqual(t, series.Points[0].Value, other[f.Name].Points[0].Value)

		low, _ := f.Min.Float64()
		high, _ := f.Max.Float64()
		for i, p := range series.Points {
			assert.GreaterOrEqual(t, p.Value, low)
			assert.LessOrEqual(t, p.Value, high)
			if i > 0 {
				assert.True(t, p.Date.After(series.Points[i-1].Date))
			}
		}
	}
}

func TestGenerateSkipsFieldsMissingFromSnapshot(t *testing.T) {
	snap, fields := testSnapshot()
	delete(snap.Values, "nifty_50")

	out := Generate(snap, fields, now, 12, 1)
	assert.Len(t, out, 1)
	assert.Len(t, out["inflation_rate"].Points, 13)
}

func TestFilterWindows(t *testing.T) {
	s := monthlySeries(24)

	cases := []struct {
		label string
		first float64
		count int
	}{
		{"0-3 months", 21, 4},
		{"3-6 months", 18, 4},
		{"6-9 months", 15, 4},
		{"More than a Year", 0, 13},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			out := Filter(s, tc.label, now)
			require.Len(t, out.Points, tc.count)
			assert.Equal(t, tc.first, out.Points[0].Value)
			assert.Equal(t, "x", out.Field)
		})
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	s := monthlySeries(24)
	for _, label := range append(Labels(), "unknown-label") {
		once := Filter(s, label, now)
		twice := Filter(once, label, now)
		assert.Equal(t, once, twice, label)
	}
}

func TestFilterUnknownLabelPassesThrough(t *testing.T) {
	s := monthlySeries(24)
	assert.Equal(t, s, Filter(s, "unknown-label", now))
	assert.Equal(t, s, Filter(s, "", now))
}

func TestFilterPreservesOrderAndInput(t *testing.T) {
	s := monthlySeries(24)
	before := len(s.Points)
	out := Filter(s, "3-6 months", now)

	assert.Len(t, s.Points, before)
	for i := 1; i < len(out.Points); i++ {
		assert.True(t, out.Points[i].Date.After(out.Points[i-1].Date))
	}
}

func TestSummarize(t *testing.T) {
	s := Series{Points: []Point{
		{Date: now.AddDate(0, -2, 0), Value: 2},
		{Date: now.AddDate(0, -1, 0), Value: 6},
		{Date: now, Value: 4},
	}}
	sum := Summarize(s)
	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 4.0, sum.Mean, 1e-9)
	assert.Equal(t, 2.0, sum.First)
	assert.Equal(t, 4.0, sum.Last)
	assert.Equal(t, 2.0, sum.Delta)
	assert.Equal(t, 2.0, sum.Min)
	assert.Equal(t, 6.0, sum.Max)

	assert.Equal(t, Summary{}, Summarize(Series{}))
}

func TestCompare(t *testing.T) {
	byField := map[string]Series{"x": monthlySeries(24)}

	out := Compare(byField, nil, now)
	require.Len(t, out, len(Periods))
	assert.Equal(t, "0-3 months", out[0].Period)
	assert.InDelta(t, 22.5, out[0].Mean, 1e-9)
	assert.Equal(t, "More than a Year", out[3].Period)
	assert.InDelta(t, 6.0, out[3].Mean, 1e-9)

	assert.Empty(t, Compare(byField, []string{"missing"}, now))
}

func TestLookupPeriod(t *testing.T) {
	p, ok := LookupPeriod("3-6 months")
	require.True(t, ok)
	from, to := p.Bounds(now)
	assert.Equal(t, now.AddDate(0, -6, 0), from)
	assert.Equal(t, now.AddDate(0, -3, 0), to)

	_, ok = LookupPeriod("1 week")
	assert.False(t, ok)
}
