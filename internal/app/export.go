package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"econ-snapshot/internal/history"
)

// Export renders the synthetic history as CSV and/or PNG charts.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.ComparePNGPath == "" {
		return errors.New("at least one of --csv, --png or --compare-png must be provided")
	}

	series, names, now, err := a.historyFor(ctx, opts.Fields)
	if err != nil {
		return err
	}

	filtered := make([]history.Series, 0, len(names))
	for _, name := range names {
		filtered = append(filtered, history.Filter(series[name], opts.Period, now))
	}

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, filtered); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("fields", len(filtered)).Msg("csv exported")
	}

	if opts.PNGPath != "" {
		if len(filtered) > 2 {
			return fmt.Errorf("--png plots at most two fields, got %d; narrow with --field", len(filtered))
		}
		if err := a.writeSeriesPNG(opts.PNGPath, filtered); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("chart exported")
	}

	if opts.ComparePNGPath != "" {
		compared := names
		if len(opts.Fields) == 0 {
			compared = comparisonFields(series)
		}
		if len(compared) == 0 {
			return errors.New("--compare-png: none of the default indicators are configured; pass --field")
		}
		if len(compared) > maxComparedFields {
			return fmt.Errorf("--compare-png groups at most %d fields, got %d; narrow with --field", maxComparedFields, len(compared))
		}
		comparison := history.Compare(series, compared, now)
		if err := a.writeComparisonPNG(opts.ComparePNGPath, comparison); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.ComparePNGPath).Strs("fields", compared).Msg("period comparison exported")
	}

	return nil
}

func writeSeriesCSV(path string, series []history.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "field", "value"}); err != nil {
		return err
	}
	for _, s := range series {
		for _, p := range s.Points {
			record := []string{
				p.Date.UTC().Format("2006-01-02"),
				s.Field,
				strconv.FormatFloat(p.Value, 'f', 4, 64),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (a *App) writeSeriesPNG(path string, series []history.Series) error {
	if len(series) == 0 {
		return errors.New("no series to plot")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}

	graph := chart.Chart{
		Width:  a.Config.Export.Width,
		Height: a.Config.Export.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           series[0].Field,
			ValueFormatter: valueFormatter,
		},
	}

	for i, s := range series {
		if len(s.Points) < 2 {
			return fmt.Errorf("field %s has %d points in the selected period; need at least two", s.Field, len(s.Points))
		}
		x := make([]time.Time, len(s.Points))
		y := make([]float64, len(s.Points))
		for j, p := range s.Points {
			x[j] = p.Date
			y[j] = p.Value
		}
		ts := chart.TimeSeries{Name: s.Field, XValues: x, YValues: y}
		if i == 1 {
			ts.YAxis = chart.YAxisSecondary
			graph.YAxisSecondary = chart.YAxis{Name: s.Field, ValueFormatter: valueFormatter}
		}
		graph.Series = append(graph.Series, ts)
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// Indicators compared across periods when no --field is given.
var defaultComparisonFields = []string{"inflation_rate", "gdp_growth", "unemployment_rate"}

const maxComparedFields = 6

func comparisonFields(series map[string]history.Series) []string {
	var out []string
	for _, name := range defaultComparisonFields {
		if _, ok := series[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// writeComparisonPNG draws one bar per field per period, grouped by period and
// coloured by field.
func (a *App) writeComparisonPNG(path string, rows []history.PeriodSummary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	colour := make(map[string]int)
	var fields []string
	for _, row := range rows {
		if _, ok := colour[row.Field]; !ok {
			colour[row.Field] = len(fields)
			fields = append(fields, row.Field)
		}
	}

	bars := make([]chart.Value, 0, len(rows))
	for _, period := range history.Labels() {
		for _, row := range rows {
			if row.Period != period || row.Count == 0 {
				continue
			}
			c := chart.GetDefaultColor(colour[row.Field])
			bars = append(bars, chart.Value{
				Label: period + " " + row.Field,
				Value: row.Mean,
				Style: chart.Style{FillColor: c, StrokeColor: c},
			})
		}
	}
	if len(bars) < 2 {
		return fmt.Errorf("too few populated periods to compare %v", fields)
	}

	graph := chart.BarChart{
		Title:      "Average by period: " + strings.Join(fields, ", "),
		Width:      a.Config.Export.Width,
		Height:     a.Config.Export.Height,
		BarWidth:   60,
		BarSpacing: 10,
		Bars:       bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
