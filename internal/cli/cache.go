package cli

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached group result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ClearCache(cmd.Context())
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
