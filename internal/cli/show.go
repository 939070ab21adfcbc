package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"econ-snapshot/internal/app"
)

var (
	showLimit  int
	showField  string
	showAlerts bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently archived snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			Field:  showField,
			Alerts: showAlerts,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().StringVar(&showField, "field", "", "Show the value of a single field per snapshot")
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Show recent alerts instead of snapshots")
}
