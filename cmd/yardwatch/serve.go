package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/yardwatch"
	"github.com/jpalmerr/yardwatch/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts polling and serving the API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling and serving the API",
	Long: `Start yardwatch.

The server will:
  - Load configuration from the specified YAML file
  - Layer flags and YARDWATCH_* environment variables over it
  - Open the SQLite filter store when a database path is set
  - Poll every configured view and serve the API on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  yardwatch serve -c yardwatch.yaml
  YARDWATCH_PORT=9090 yardwatch serve -c yardwatch.yaml --db filters.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
	addOverrideFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ov, err := loadOverrides(cmd.Flags())
	if err != nil {
		return err
	}
	logger := newLogger(ov.logLevel)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ov.apply(cfg)

	logger.Info("config loaded",
		"views", len(cfg.Views),
		"grids", len(cfg.Grids),
	)

	views, err := config.BuildViews(cfg)
	if err != nil {
		return fmt.Errorf("failed to build views: %w", err)
	}
	if len(views) == 0 {
		return errors.New("no views configured")
	}

	opts := append(config.Options(cfg),
		yardwatch.WithViews(views...),
		yardwatch.WithLogger(logger),
	)

	if cfg.Storage.Path != "" {
		repo, closeRepo, err := yardwatch.OpenSQLiteFilterRepository(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open filter store: %w", err)
		}
		defer func() {
			if err := closeRepo(); err != nil {
				logger.Warn("closing filter store failed", "error", err)
			}
		}()
		opts = append(opts, yardwatch.WithFilterRepository(repo))
		logger.Info("filters persisted", "path", cfg.Storage.Path)
	}

	yw, err := yardwatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create yardwatch: %w", err)
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
		"views", len(views),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- yw.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
