package history

import (
	"time"
)

// Period is a window of whole months back from now, [now-End, now-Start].
type Period struct {
	Label string
	Start int
	End   int
}

// Periods lists the supported windows in display order.
var Periods = []Period{
	{Label: "0-3 months", Start: 0, End: 3},
	{Label: "3-6 months", Start: 3, End: 6},
	{Label: "6-9 months", Start: 6, End: 9},
	{Label: "More than a Year", Start: 12, End: 24},
}

// LookupPeriod resolves a label.
func LookupPeriod(label string) (Period, bool) {
	for _, p := range Periods {
		if p.Label == label {
			return p, true
		}
	}
	return Period{}, false
}

// Labels returns the period labels in display order.
func Labels() []string {
	out := make([]string, len(Periods))
	for i, p := range Periods {
		out[i] = p.Label
	}
	return out
}

// Bounds returns the inclusive window of p anchored at now.
func (p Period) Bounds(now time.Time) (from, to time.Time) {
	return now.AddDate(0, -p.End, 0), now.AddDate(0, -p.Start, 0)
}

// Filter keeps the points inside the labelled window, preserving order. An
// unknown label returns the series unchanged.
func Filter(series Series, label string, now time.Time) Series {
	p, ok := LookupPeriod(label)
	if !ok {
		return series
	}
	from, to := p.Bounds(now)

	out := Series{Field: series.Field, Points: make([]Point, 0, len(series.Points))}
	for _, pt := range series.Points {
		if pt.Date.Before(from) || pt.Date.After(to) {
			continue
		}
		out.Points = append(out.Points, pt)
	}
	return out
}
