package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jpalmerr/yardwatch/config"
)

const envPrefix = "YARDWATCH"

// Setting keys. Each is bound to a flag and to YARDWATCH_<KEY>.
const (
	keyPort     = "port"
	keyDB       = "db"
	keyLogLevel = "log_level"
)

// overrides are the settings layered over the config file.
type overrides struct {
	port     int
	dbPath   string
	logLevel slog.Level
}

// addOverrideFlags registers the flags that viper layers over the file.
func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 0, "HTTP port (overrides config file)")
	cmd.Flags().String("db", "", "SQLite database for saved filters (overrides storage.path)")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn or error")
}

// loadOverrides resolves settings from flags and environment variables.
// An explicitly set flag wins over the environment.
func loadOverrides(flags *pflag.FlagSet) (overrides, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(keyLogLevel, "info")

	bindings := map[string]string{
		keyPort:     "port",
		keyDB:       "db",
		keyLogLevel: "log-level",
	}
	for key, flag := range bindings {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return overrides{}, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(keyLogLevel))); err != nil {
		return overrides{}, fmt.Errorf("invalid log level %q: %w", v.GetString(keyLogLevel), err)
	}

	port := v.GetInt(keyPort)
	if port < 0 || port > 65535 {
		return overrides{}, fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return overrides{
		port:     port,
		dbPath:   v.GetString(keyDB),
		logLevel: level,
	}, nil
}

// apply writes the non-zero overrides into cfg.
func (o overrides) apply(cfg *config.Config) {
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.dbPath != "" {
		cfg.Storage.Path = o.dbPath
	}
}
