package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley runs scripted chatbot conversations",
	Long: `Parley executes conversation scenarios: directed graphs of steps with
choices, rules and variable collection, one context per chat session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Load settings from this .env file (default .env when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides $PARLEY_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides $PARLEY_LOG_FORMAT)")
}

// loadConfig reads the environment, then applies the flags set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var files []string
	if f, _ := cmd.Flags().GetString("env-file"); f != "" {
		files = append(files, f)
	}
	cfg, err := config.Load(logging.NewNop(), files...)
	if err != nil {
		return config.Config{}, err
	}

	overrideString(cmd, "log-level", &cfg.LogLevel)
	overrideString(cmd, "log-format", &cfg.LogFormat)
	overrideString(cmd, "addr", &cfg.Addr)
	overrideString(cmd, "db-driver", &cfg.DBDriver)
	overrideString(cmd, "db-dsn", &cfg.DBDSN)
	overrideString(cmd, "redis-addr", &cfg.RedisAddr)
	overrideString(cmd, "scenarios", &cfg.Scenarios)
	overrideInt64(cmd, "default-scenario", &cfg.DefaultScenario)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.NewWithFormat(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}

func overrideInt64(cmd *cobra.Command, name string, dst *int64) {
	if cmd.Flags().Changed(name) {
		if v, err := cmd.Flags().GetInt64(name); err == nil {
			*dst = v
		}
	}
}
