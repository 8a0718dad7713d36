// Package main is the entry point for the yardwatch CLI.
//
// yardwatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	yardwatch serve -c config.yaml    # Start polling and serving the API
//	yardwatch validate -c config.yaml # Validate configuration
//	yardwatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "yardwatch",
	Short: "Keep logistics yard pages current by polling and diffing",
	Long: `yardwatch polls the endpoints behind the pages of a logistics yard
application, detects what changed by hashing each response, and streams
only the changed regions to clients over SSE or WebSocket.

Quick start:
  1. Create a config file (yardwatch.yaml)
  2. Run: yardwatch serve -c yardwatch.yaml
  3. Watch http://localhost:8080/api/sse

Example config:
  port: 8080
  poll_interval: 15s
  views:
    - name: pending
      url: https://yard.example.com/api/porteria/pendientes
      regions:
        - pending=data.pendientes|pendientes

Settings can be overridden by flags or YARDWATCH_PORT, YARDWATCH_DB and
YARDWATCH_LOG_LEVEL environment variables.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this yardwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "yardwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
