package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"econ-snapshot/internal/cache"
	"econ-snapshot/internal/config"
	"econ-snapshot/internal/fetcher"
)

// Recorder receives assembly telemetry.
type Recorder interface {
	ObserveFetch(source, outcome string)
	ObserveBuild(duration time.Duration, live int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, string) {}
func (nopRecorder) ObserveBuild(time.Duration, int) {}

// Options wires an Assembler.
type Options struct {
	Fields   []FieldSpec
	Sources  []fetcher.Source
	Cache    cache.Cache[GroupResult]
	TTL      map[string]time.Duration
	Market   MarketHours
	Recorder Recorder
	Now      func() time.Time
}

// Assembler builds snapshots. It owns no global state: the cache and the
// sources (and the rate gate behind them) are supplied by the caller.
type Assembler struct {
	fields   []FieldSpec
	byGroup  map[string][]FieldSpec
	groups   []string
	sources  map[string]fetcher.Source
	cache    cache.Cache[GroupResult]
	ttl      map[string]time.Duration
	market   MarketHours
	recorder Recorder
	now      func() time.Time
	logger   zerolog.Logger
}

// NewAssembler validates the field table and constructs an Assembler.
func NewAssembler(opts Options, logger zerolog.Logger) (*Assembler, error) {
	if len(opts.Fields) == 0 {
		return nil, errors.New("snapshot: no fields configured")
	}
	if opts.Cache == nil {
		return nil, errors.New("snapshot: cache is required")
	}

	a := &Assembler{
		fields:   opts.Fields,
		byGroup:  make(map[string][]FieldSpec),
		sources:  make(map[string]fetcher.Source, len(opts.Sources)),
		cache:    opts.Cache,
		ttl:      opts.TTL,
		market:   opts.Market,
		recorder: opts.Recorder,
		now:      opts.Now,
		logger:   logger.With().Str("component", "assembler").Logger(),
	}
	if a.recorder == nil {
		a.recorder = nopRecorder{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.ttl == nil {
		a.ttl = map[string]time.Duration{}
	}

	seen := make(map[string]struct{}, len(opts.Fields))
	for _, f := range opts.Fields {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("snapshot: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Scale.IsZero() {
			return nil, fmt.Errorf("snapshot: field %q has zero scale", f.Name)
		}
		a.byGroup[f.Group] = append(a.byGroup[f.Group], f)
	}
	for _, g := range config.Groups {
		if len(a.byGroup[g]) > 0 {
			a.groups = append(a.groups, g)
		}
	}
	if len(a.groups) == 0 {
		return nil, errors.New("snapshot: fields reference no known group")
	}

	for _, src := range opts.Sources {
		if src != nil {
			a.sources[src.Name()] = src
		}
	}
	return a, nil
}

// Fields returns the configured field table.
func (a *Assembler) Fields() []FieldSpec {
	return a.fields
}

// Build assembles a snapshot. It never fails: every upstream failure leaves
// the affected field at its baseline.
func (a *Assembler) Build(ctx context.Context) *Snapshot {
	start := time.Now()
	now := a.now()

	snap := &Snapshot{
		ID:          uuid.New(),
		Values:      make(map[string]decimal.Decimal, len(a.fields)+1),
		Live:        make(map[string]bool, len(a.fields)+1),
		Sources:     []string{},
		LastUpdated: now,
	}
	for _, f := range a.fields {
		snap.Values[f.Name] = f.Baseline
		snap.Live[f.Name] = false
	}

	for _, group := range a.groups {
		fields := a.byGroup[group]
		res := a.cache.GetOrCompute(ctx, cacheKey(group), a.ttl[group], func(ctx context.Context) GroupResult {
			return a.fetchGroup(ctx, fields)
		})
		for name, v := range res.Values {
			if _, ok := snap.Values[name]; ok {
				snap.Values[name] = v
				snap.Live[name] = true
			}
		}
		snap.Sources = appendUnique(snap.Sources, res.Sources...)
	}

	a.perturb(snap, now)
	derive(snap)
	snap.DataSource = dataSource(snap.Sources)

	live := 0
	for _, ok := range snap.Live {
		if ok {
			live++
		}
	}
	a.recorder.ObserveBuild(time.Since(start), live)
	a.logger.Info().
		Str("snapshot_id", snap.ID.String()).
		Int("fields", len(snap.Values)).
		Int("live", live).
		Str("data_source", snap.DataSource).
		Msg("snapshot assembled")
	return snap
}

// Refresh drops every cached group and rebuilds from the upstreams.
func (a *Assembler) Refresh(ctx context.Context) *Snapshot {
	if err := a.cache.Clear(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("cache clear failed, building from existing entries")
	}
	return a.Build(ctx)
}

func (a *Assembler) fetchGroup(ctx context.Context, fields []FieldSpec) GroupResult {
	res := GroupResult{
		Values:    make(map[string]decimal.Decimal, len(fields)),
		Sources:   []string{},
		FetchedAt: a.now(),
	}

	for _, f := range fields {
		if f.Source == "" || f.Source == config.SourceNone {
			continue
		}
		src, ok := a.sources[f.Source]
		if !ok {
			a.logger.Debug().Str("field", f.Name).Str("source", f.Source).Msg("source not configured, keeping baseline")
			continue
		}

		raw, err := src.Fetch(ctx, f.Identifier)
		if err != nil {
			a.reject(f, err)
			continue
		}

		v := raw.Mul(f.Scale)
		if !f.InRange(v) {
			a.reject(f, fetcher.NewError(f.Source, f.Identifier, fetcher.KindOutOfRange,
				fmt.Errorf("%s = %s outside [%s, %s]", f.Name, v, f.Min, f.Max)))
			continue
		}

		a.recorder.ObserveFetch(f.Source, "ok")
		res.Values[f.Name] = v
		res.Sources = appendUnique(res.Sources, src.Name())
	}
	return res
}

func (a *Assembler) reject(f FieldSpec, err error) {
	kind := fetcher.KindOf(err)
	a.recorder.ObserveFetch(f.Source, kind.String())
	a.logger.Warn().
		Err(err).
		Str("field", f.Name).
		Str("source", f.Source).
		Str("identifier", f.Identifier).
		Str("kind", kind.String()).
		Msg("fetch failed, keeping baseline")
}

// perturb nudges non-live fields so a fallback display does not sit perfectly
// still. Index fields stay put while their exchange is closed.
func (a *Assembler) perturb(snap *Snapshot, now time.Time) {
	marketOpen := a.market.IsOpen(now)
	for _, f := range a.fields {
		if snap.Live[f.Name] || f.Jitter <= 0 {
			continue
		}
		if f.Group == config.GroupIndices && !marketOpen {
			continue
		}
		snap.Values[f.Name] = jittered(f, a.market.perturbation(f.Name, now, f.Jitter))
	}
}

func derive(snap *Snapshot) {
	repo, okRepo := snap.Values[fieldRepoRate]
	inflation, okInfl := snap.Values[fieldInflationRate]
	if !okRepo || !okInfl {
		return
	}
	snap.Values[FieldRealPolicyRate] = repo.Sub(inflation)
	snap.Live[FieldRealPolicyRate] = snap.Live[fieldRepoRate] && snap.Live[fieldInflationRate]
}
