package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var serverAddr string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "schedulerctl",
	Short: "Command-line client for the job scheduler's REST API",
	Long: `schedulerctl talks to a running jobscheduler instance over HTTP.

Examples:
  schedulerctl jobs list
  schedulerctl jobs get 8f14e2
  schedulerctl jobs create --name nightly-report --type cron --schedule "0 2 * * *" --endpoint http://reports/run
  schedulerctl jobs pause 8f14e2
  schedulerctl jobs trigger 8f14e2`,
	Version: version,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		envOr("SCHEDULERCTL_SERVER", "http://localhost:5003"), "Base URL of the scheduler API")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(executionsCmd)
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
