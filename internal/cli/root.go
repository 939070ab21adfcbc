package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"econ-snapshot/internal/app"
	"econ-snapshot/internal/config"
	"econ-snapshot/internal/logging"
	"econ-snapshot/internal/version"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

const rootLong = `econsnap fetches Indian macro indicators and market quotes from rate-limited public
upstreams, caches them per data category and falls back to configured constants
so that every snapshot carries every field.`

var rootCmd = &cobra.Command{
	Use:          "econsnap",
	Short:        "Build Indian macro and market snapshots from public data sources",
	Long:         rootLong,
	Version:      version.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
