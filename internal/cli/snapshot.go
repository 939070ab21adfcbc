package cli

import (
	"github.com/spf13/cobra"

	"econ-snapshot/internal/app"
)

var (
	snapshotRefresh bool
	snapshotJSON    bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Build and print one snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Snapshot(cmd.Context(), app.SnapshotOptions{
			Refresh: snapshotRefresh,
			JSON:    snapshotJSON,
		})
	},
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotRefresh, "refresh", false, "Clear cached results before building")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the snapshot as JSON")
}
