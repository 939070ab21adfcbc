// Package history produces the synthetic monthly series charted next to a
// snapshot and slices them into named relative periods.
package history

import (
	"hash/fnv"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"econ-snapshot/internal/snapshot"
)

// Point is one dated observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is ordered by ascending date.
type Series struct {
	Field  string  `json:"field"`
	Points []Point `json:"points"`
}

// Values returns the observations without dates.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Generate builds one monthly series per field covering the trailing months.
// The last point equals the snapshot value; earlier points walk backwards
// with seeded normal steps scaled by the field volatility and stay inside the
// field band. The same snapshot, now and seed always give the same series.
func Generate(snap *snapshot.Snapshot, fields []snapshot.FieldSpec, now time.Time, months int, seed uint64) map[string]Series {
	if months <= 0 {
		months = 24
	}
	out := make(map[string]Series, len(fields))
	for _, f := range fields {
		current, ok := snap.Values[f.Name]
		if !ok {
			continue
		}
		last, _ := current.Float64()
		low, _ := f.Min.Float64()
		high, _ := f.Max.Float64()

		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, fieldStream(f.Name))}

		values := make([]float64, months+1)
		values[months] = last
		for i := months - 1; i >= 0; i-- {
			step := values[i+1] * f.Volatility * normal.Rand()
			values[i] = clip(values[i+1]+step, low, high)
		}

		points := make([]Point, months+1)
		for i := range values {
			points[i] = Point{Date: now.AddDate(0, i-months, 0), Value: values[i]}
		}
		out[f.Name] = Series{Field: f.Name, Points: points}
	}
	return out
}

func fieldStream(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

func clip(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
