package app

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"econ-snapshot/internal/snapshot"
)

// Snapshot builds one snapshot and prints it.
func (a *App) Snapshot(ctx context.Context, opts SnapshotOptions) error {
	b, err := a.newBuilder(ctx, nil)
	if err != nil {
		return err
	}
	defer b.close()

	var snap *snapshot.Snapshot
	if opts.Refresh {
		snap = b.Refresh(ctx)
	} else {
		snap = b.Build(ctx)
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Field\tLabel\tValue\tUnit\tLive")
	labels := fieldLabels(b.Fields())
	for _, name := range snap.Fields() {
		meta := labels[name]
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			name,
			meta.label,
			formatDecimal(snap.Values[name], 2),
			meta.unit,
			yesNo(snap.Live[name]),
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "\nData source: %s\nLast updated: %s\n", snap.DataSource, snap.LastUpdated.UTC().Format(time.RFC3339))
	for _, usage := range b.gate.Usage() {
		if usage.Limit > 0 {
			fmt.Fprintf(a.Out, "Budget %s: %d/%d calls today\n", usage.Source, usage.Calls, usage.Limit)
		}
	}
	return nil
}

type fieldMeta struct {
	label string
	unit  string
}

func fieldLabels(fields []snapshot.FieldSpec) map[string]fieldMeta {
	out := make(map[string]fieldMeta, len(fields)+1)
	for _, f := range fields {
		out[f.Name] = fieldMeta{label: f.Label, unit: f.Unit}
	}
	out[snapshot.FieldRealPolicyRate] = fieldMeta{label: "Real policy rate", unit: "%"}
	return out
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
