// Package app holds the dashboard's cobra commands.
package app

import (
	"github.com/spf13/cobra"

	"carbon_dashboard/internal/config"
	"carbon_dashboard/internal/logger"
)

// v carries defaults, CARBON_* environment overrides and bound flags.
var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:          "dashboard",
	Short:        "Carbon offset projects and carbon market news",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Log.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	if err := v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		logger.Log.Errorf("Error binding log-level flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(fetchCmd)

	return rootCmd
}
