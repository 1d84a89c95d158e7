package main

import (
	"os"

	"github.com/rahul/seeker/pkg/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "seeker",
	Short: "Plan-then-execute research agent",
	Long: `Seeker answers research questions in three phases: a planning model writes a
numbered plan, an executor works through each step with web tools, and a
synthesis model turns the collected findings into a report.

Run a single question from the terminal with "seeker run", or start the HTTP
API, chat gateways and scheduler with "seeker serve".`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.json or ./config/config.json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(runsCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}
