package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/yardwatch/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a yardwatch configuration file without starting the server.

This command parses the YAML, expands environment variables, validates all
fields and builds every view, so invalid view names or region settings are
reported too. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  yardwatch validate -c yardwatch.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	views, err := config.BuildViews(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Views)
	fromGrids := len(views) - direct

	storage := "memory"
	if cfg.Storage.Path != "" {
		storage = cfg.Storage.Path
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Filters:       %s\n", storage)
	fmt.Fprintf(out, "  Views:         %d direct + %d from grids = %d total\n",
		direct, fromGrids, len(views))

	return nil
}
