// Command goguard lints policies, serves the goGuard HTTP API and load-tests
// the authorize path.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "goguard",
	Short: "Security control plane for privileged operations",
	Long: `goguard runs the goGuard control plane.

Commands:
  lint      Validate a policy file
  serve     Serve the admin and status HTTP API
  loadtest  Measure Authorize throughput and latency`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotated file instead of stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
