// Package snapshot assembles one consistent set of indicator and quote values
// from unreliable upstreams, a result cache and configured fallback constants.
package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"econ-snapshot/internal/config"
)

// FallbackSource is reported as the data source when no upstream contributed.
const FallbackSource = "fallback"

// Derived fields computed from other snapshot values.
const (
	FieldRealPolicyRate = "real_policy_rate"
	fieldRepoRate       = "repo_rate"
	fieldInflationRate  = "inflation_rate"
)

// FieldSpec describes one required snapshot field.
type FieldSpec struct {
	Name       string
	Label      string
	Unit       string
	Group      string
	Source     string
	Identifier string
	Baseline   decimal.Decimal
	Min        decimal.Decimal
	Max        decimal.Decimal
	Scale      decimal.Decimal
	Jitter     float64
	Volatility float64
}

// InRange reports whether v falls inside the field's plausible band.
func (f FieldSpec) InRange(v decimal.Decimal) bool {
	return !v.LessThan(f.Min) && !v.GreaterThan(f.Max)
}

// Snapshot is created whole on every assembly and never mutated afterwards.
type Snapshot struct {
	ID          uuid.UUID                  `json:"id"`
	Values      map[string]decimal.Decimal `json:"values"`
	Live        map[string]bool            `json:"live"`
	Sources     []string                   `json:"sources"`
	DataSource  string                     `json:"data_source"`
	LastUpdated time.Time                  `json:"last_updated"`
}

// Fields returns the field names in lexical order.
func (s *Snapshot) Fields() []string {
	names := make([]string, 0, len(s.Values))
	for name := range s.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Float returns a field as float64, or zero when absent.
func (s *Snapshot) Float(name string) float64 {
	v, ok := s.Values[name]
	if !ok {
		return 0
	}
	f, _ := v.Float64()
	return f
}

// IsFallback reports whether no upstream contributed live data.
func (s *Snapshot) IsFallback() bool {
	return len(s.Sources) == 0
}

// GroupResult is what one data category contributes; it is the cached unit.
type GroupResult struct {
	Values    map[string]decimal.Decimal `json:"values"`
	Sources   []string                   `json:"sources"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

func cacheKey(group string) string {
	return "group:" + group
}

func dataSource(sources []string) string {
	if len(sources) == 0 {
		return FallbackSource
	}
	return strings.Join(sources, ", ")
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

// SpecsFromConfig converts the configured field table, ordered by name.
func SpecsFromConfig(cfg *config.Config) []FieldSpec {
	names := cfg.FieldNames()
	specs := make([]FieldSpec, 0, len(names))
	for _, name := range names {
		fc := cfg.Fields[name]
		scale := fc.Scale
		if scale == 0 {
			scale = 1
		}
		specs = append(specs, FieldSpec{
			Name:       name,
			Label:      fc.Label,
			Unit:       fc.Unit,
			Group:      fc.Group,
			Source:     fc.Source,
			Identifier: fc.Identifier,
			Baseline:   decimal.NewFromFloat(fc.Baseline),
			Min:        decimal.NewFromFloat(fc.Min),
			Max:        decimal.NewFromFloat(fc.Max),
			Scale:      decimal.NewFromFloat(scale),
			Jitter:     fc.Jitter,
			Volatility: fc.Volatility,
		})
	}
	return specs
}

// GroupTTLs resolves the cache TTL of every group.
func GroupTTLs(cfg *config.Config) map[string]time.Duration {
	out := make(map[string]time.Duration, len(config.Groups))
	for _, g := range config.Groups {
		out[g] = cfg.GroupTTL(g)
	}
	return out
}
