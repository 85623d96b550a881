package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored conversation contexts",
	Long:  `List, inspect and remove conversation contexts kept in Redis ($PARLEY_REDIS_ADDR).`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all active sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := sessionApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.engine.Sessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No active sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Active Sessions:")
		for _, s := range sessions {
			fmt.Fprintln(out, "- "+s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the context of a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := sessionApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		convCtx, err := a.engine.GetContext(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load session %q: %w", args[0], err)
		}
		data, err := json.MarshalIndent(a.redactor.Redact(convCtx), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := sessionApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var errs []error
		for _, sessionID := range args {
			if err := a.engine.ClearContext(cmd.Context(), sessionID); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove %q: %w", sessionID, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
	sessionCmd.PersistentFlags().String("redis-addr", "", "Redis address (overrides $PARLEY_REDIS_ADDR)")
}

// sessionApp builds an engine over the Redis context store. In-memory
// contexts die with their process, so there is nothing to manage without Redis.
func sessionApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("sessions are only stored with Redis: set PARLEY_REDIS_ADDR or --redis-addr")
	}
	cfg.Scenarios, cfg.DBDSN = "", ""
	if !cmd.Flags().Changed("log-level") {
		cfg.LogLevel = "warn"
	}
	return newApp(cmd.Context(), cfg, newLogger(cfg), false)
}
