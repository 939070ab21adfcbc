package cli

import (
	"github.com/spf13/cobra"

	"econ-snapshot/internal/app"
)

var (
	exportPeriod     string
	exportFields     []string
	exportPNGPath    string
	exportCSVPath    string
	exportComparePNG string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export field history as CSV and/or PNG charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Period:         exportPeriod,
			Fields:         exportFields,
			CSVPath:        exportCSVPath,
			PNGPath:        exportPNGPath,
			ComparePNGPath: exportComparePNG,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPeriod, "period", "", "Period label, e.g. \"0-3 months\" (empty keeps the full history)")
	exportCmd.Flags().StringSliceVar(&exportFields, "field", nil, "Field to export (repeatable; defaults to every field)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write a time-series PNG chart (at most two fields)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportComparePNG, "compare-png", "", "Path to write a per-period comparison bar chart (defaults to inflation, GDP growth and unemployment)")
}
