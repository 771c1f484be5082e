// Package cmd implements the fwctl CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/fleetwatch/fleetwatch/internal/api/client"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "fwctl",
		Short: "CLI client for fleetwatch",
		Long: "fwctl is a command-line client for the fleetwatch API.\n" +
			"It lets you query alerts and rules, view scheduler job history,\n" +
			"and trigger evaluation passes from the terminal.",
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default $HOME/.fwctl.yaml)")
	rootCmd.PersistentFlags().
		String("server", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().
		String("tenant", "", "tenant ID to operate on")
	rootCmd.PersistentFlags().
		String("output", "table", "output format (table, json)")

	cobra.CheckErr(viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant")))
	cobra.CheckErr(viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output")))

	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(systemCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fwctl")
	}

	viper.SetEnvPrefix("FWCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"))
}

func tenantID() (string, error) {
	t := viper.GetString("tenant")
	if t == "" {
		return "", fmt.Errorf("a tenant is required: pass --tenant or set FWCTL_TENANT")
	}
	return t, nil
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}
