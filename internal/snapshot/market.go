package snapshot

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"
	_ "time/tzdata" // market hours are evaluated in the exchange timezone

	"github.com/shopspring/decimal"
)

// MarketHours is the regular session of the exchange the index fields trade on.
type MarketHours struct {
	Location *time.Location
	Open     int // minutes after local midnight
	Close    int
}

// ParseMarketHours builds a session from a timezone name and HH:MM bounds.
func ParseMarketHours(timezone, open, close string) (MarketHours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return MarketHours{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return MarketHours{}, fmt.Errorf("market open: %w", err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return MarketHours{}, fmt.Errorf("market close: %w", err)
	}
	if openMin >= closeMin {
		return MarketHours{}, fmt.Errorf("market open %s must be before close %s", open, close)
	}
	return MarketHours{Location: loc, Open: openMin, Close: closeMin}, nil
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse %q as HH:MM: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (m MarketHours) local(t time.Time) time.Time {
	if m.Location == nil {
		return t
	}
	return t.In(m.Location)
}

// IsOpen reports whether t falls on a weekday inside the session.
func (m MarketHours) IsOpen(t time.Time) bool {
	lt := m.local(t)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := lt.Hour()*60 + lt.Minute()
	return minute >= m.Open && minute < m.Close
}

// perturbation returns a factor in [1-amplitude, 1+amplitude] that depends
// only on the field name and the local hour and minute of t.
func (m MarketHours) perturbation(field string, t time.Time, amplitude float64) float64 {
	lt := m.local(t)
	h := fnv.New32a()
	_, _ = h.Write([]byte(field))
	seed := h.Sum32() ^ uint32(lt.Hour()*60+lt.Minute())*2654435761
	phase := float64(seed%10001) / 10000
	return 1 + amplitude*(2*phase-1)
}

func jittered(f FieldSpec, factor float64) decimal.Decimal {
	if math.IsNaN(factor) || factor <= 0 {
		return f.Baseline
	}
	v := f.Baseline.Mul(decimal.NewFromFloat(factor)).Round(4)
	if v.LessThan(f.Min) {
		return f.Min
	}
	if v.GreaterThan(f.Max) {
		return f.Max
	}
	return v
}
