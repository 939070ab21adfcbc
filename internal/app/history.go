package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"econ-snapshot/internal/history"
)

// historyFor builds a snapshot and the synthetic series derived from it,
// restricted to the requested fields.
func (a *App) historyFor(ctx context.Context, fields []string) (map[string]history.Series, []string, time.Time, error) {
	b, err := a.newBuilder(ctx, nil)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	defer b.close()

	snap := b.Build(ctx)
	now := snap.LastUpdated
	series := history.Generate(snap, b.Fields(), now, a.Config.History.Months, a.Config.History.Seed)

	names, err := selectFields(series, fields)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	return series, names, now, nil
}

func selectFields(series map[string]history.Series, requested []string) ([]string, error) {
	if len(requested) == 0 {
		names := make([]string, 0, len(series))
		for name := range series {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	for _, name := range requested {
		if _, ok := series[name]; !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
	}
	return requested, nil
}

// History prints period summaries of the synthetic series. Without a period
// every field is summarised over every period.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	series, names, now, err := a.historyFor(ctx, opts.Fields)
	if err != nil {
		return err
	}

	if opts.Period == "" {
		comparison := history.Compare(series, names, now)
		if opts.JSON {
			return writeJSON(a, comparison)
		}
		writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Field\tPeriod\tPoints\tMean")
		for _, row := range comparison {
			fmt.Fprintf(writer, "%s\t%s\t%d\t%.2f\n", row.Field, row.Period, row.Count, row.Mean)
		}
		return writer.Flush()
	}

	if _, ok := history.LookupPeriod(opts.Period); !ok {
		a.Logger.Warn().Str("period", opts.Period).Strs("known", history.Labels()).Msg("unknown period; showing the full series")
	}

	type row struct {
		Field   string          `json:"field"`
		Period  string          `json:"period"`
		Summary history.Summary `json:"summary"`
	}
	rows := make([]row, 0, len(names))
	for _, name := range names {
		filtered := history.Filter(series[name], opts.Period, now)
		rows = append(rows, row{Field: name, Period: opts.Period, Summary: history.Summarize(filtered)})
	}
	if opts.JSON {
		return writeJSON(a, rows)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Field\tPoints\tMean\tFirst\tLast\tDelta\tMin\tMax")
	for _, r := range rows {
		s := r.Summary
		fmt.Fprintf(writer, "%s\t%d\t%.2f\t%.2f\t%.2f\t%+.2f\t%.2f\t%.2f\n", r.Field, s.Count, s.Mean, s.First, s.Last, s.Delta, s.Min, s.Max)
	}
	return writer.Flush()
}

func writeJSON(a *App, v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
