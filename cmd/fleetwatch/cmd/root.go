// Package cmd implements the CLI commands for the fleetwatch server.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fleetwatch",
	Short: "Evaluate IoT fleet telemetry against alert rules",
	Long: "A multi-tenant service that ingests device telemetry, evaluates it " +
		"against per-tenant threshold and anomaly rules, tracks device heartbeats, " +
		"and dispatches alert notifications.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
