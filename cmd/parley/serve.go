package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/parley"
	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Long: `Starts the Parley engine as a server exposing the scenario REST API,
server-sent events, a chat WebSocket and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		origins, _ := cmd.Flags().GetStringSlice("allow-origin")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger, true)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := httpAdapter.NewHandler(a.engine,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
			httpAdapter.WithAllowedOrigins(origins...),
			httpAdapter.WithContextFilter(a.redactor.Redact),
		)
		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Parley server", "addr", srv.Addr, "version", parley.Version, "max_input_size", parley.MaxInputSize())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
			logger.Info("Shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				logger.Error("Error killing server", "err", err)
			}
		}
		logger.Info("Parley server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides $PARLEY_ADDR)")
	serveCmd.Flags().String("db-driver", "", "Scenario database driver: sqlite3 or postgres (overrides $PARLEY_DB_DRIVER)")
	serveCmd.Flags().String("db-dsn", "", "Scenario database DSN; empty keeps scenarios in memory (overrides $PARLEY_DB_DSN)")
	serveCmd.Flags().String("redis-addr", "", "Redis address for conversation contexts (overrides $PARLEY_REDIS_ADDR)")
	serveCmd.Flags().String("scenarios", "", "YAML or JSON scenario file to seed (overrides $PARLEY_SCENARIOS)")
	serveCmd.Flags().Int64("default-scenario", 0, "Scenario started when a chat user says start (overrides $PARLEY_DEFAULT_SCENARIO)")
	serveCmd.Flags().StringSlice("allow-origin", nil, "Origins allowed to open the chat WebSocket (default any)")
}
