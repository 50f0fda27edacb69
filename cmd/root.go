package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "strategy-lab",
	Short:        "Explore trading strategies against synthetic markets",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(exclusionsCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
