package cli

import (
	"github.com/spf13/cobra"

	"econ-snapshot/internal/app"
)

var (
	historyPeriod string
	historyFields []string
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarise field history per period",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().History(cmd.Context(), app.HistoryOptions{
			Period: historyPeriod,
			Fields: historyFields,
			JSON:   historyJSON,
		})
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyPeriod, "period", "", "Period label; empty compares every period")
	historyCmd.Flags().StringSliceVar(&historyFields, "field", nil, "Field to include (repeatable; defaults to every field)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the result as JSON")
}
