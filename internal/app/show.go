package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"econ-snapshot/internal/storage"
)

// Show prints recently archived snapshots, or recent alerts when opts.Alerts is set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show archived snapshots")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit)
	}

	records, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no snapshots found")
		return nil
	}

	field := strings.TrimSpace(opts.Field)
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	if field != "" {
		fmt.Fprintf(writer, "Time (UTC)\tID\t%s\tLive\tData source\n", field)
	} else {
		fmt.Fprintln(writer, "Time (UTC)\tID\tLive fields\tData source")
	}

	for _, rec := range records {
		taken := rec.TakenAt.UTC().Format(time.RFC3339)
		if field != "" {
			value := "-"
			if v, ok := rec.Values[field]; ok {
				value = formatDecimal(v, 2)
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
				taken, shortID(rec), value, yesNo(rec.Live[field]), sanitizeInline(rec.DataSource))
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\t%d/%d\t%s\n",
			taken, shortID(rec), countLive(rec.Live), len(rec.Values), sanitizeInline(rec.DataSource))
	}

	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store storage.AlertStore, limit int) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tField\tPrevious\tCurrent\tChange%\tDirection\tChannels")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Field,
			formatDecimal(alert.Previous, 4),
			formatDecimal(alert.Current, 4),
			formatDecimal(alert.ChangePct, 3),
			alert.Direction,
			strings.Join(alert.Channels, ","),
		)
	}
	return writer.Flush()
}

func shortID(rec storage.SnapshotRecord) string {
	return rec.ID.String()[:8]
}

func countLive(live map[string]bool) int {
	n := 0
	for _, v := range live {
		if v {
			n++
		}
	}
	return n
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
