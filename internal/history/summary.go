package history

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a series into the figures shown on a metric card.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	First float64 `json:"first"`
	Last  float64 `json:"last"`
	Delta float64 `json:"delta"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summarize computes the summary of a series. An empty series yields a zero Summary.
func Summarize(series Series) Summary {
	values := series.Values()
	if len(values) == 0 {
		return Summary{}
	}
	first, last := values[0], values[len(values)-1]
	return Summary{
		Count: len(values),
		Mean:  stat.Mean(values, nil),
		First: first,
		Last:  last,
		Delta: last - first,
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
}

// PeriodSummary is the mean of one field over one period.
type PeriodSummary struct {
	Field  string  `json:"field"`
	Period string  `json:"period"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
}

// Compare summarises every requested field over every period, ordered by
// field then period. Fields without a series are skipped.
func Compare(seriesByField map[string]Series, fields []string, now time.Time) []PeriodSummary {
	if len(fields) == 0 {
		for name := range seriesByField {
			fields = append(fields, name)
		}
		sort.Strings(fields)
	}

	out := make([]PeriodSummary, 0, len(fields)*len(Periods))
	for _, field := range fields {
		series, ok := seriesByField[field]
		if !ok {
			continue
		}
		for _, p := range Periods {
			s := Summarize(Filter(series, p.Label, now))
			out = append(out, PeriodSummary{Field: field, Period: p.Label, Count: s.Count, Mean: s.Mean})
		}
	}
	return out
}
