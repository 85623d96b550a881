package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [scenarios-file]",
	Short: "Chat with a scenario in the terminal",
	Long: `Runs an interactive conversation on stdin/stdout. Scenarios come from the
given file, $PARLEY_SCENARIOS or the configured database. Type /quit to leave.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.Scenarios = args[0]
		}
		if cfg.Scenarios == "" && cfg.DBDSN == "" {
			return errors.New("no scenarios: pass a file or set PARLEY_SCENARIOS or PARLEY_DB_DSN")
		}
		// Engine logs would interleave with the transcript.
		if !cmd.Flags().Changed("log-level") {
			cfg.LogLevel = "warn"
		}
		logger := newLogger(cfg)

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		scenarioID, _ := cmd.Flags().GetInt64("scenario")
		headless, _ := cmd.Flags().GetBool("headless")
		plain, _ := cmd.Flags().GetBool("plain")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, cfg, logger, false)
		if err != nil {
			return err
		}
		defer a.Close()

		runner := &parley.Runner{
			Input:      cmd.InOrStdin(),
			Output:     cmd.OutOrStdout(),
			Headless:   headless,
			SessionID:  sessionID,
			ScenarioID: scenarioID,
		}
		if !headless && !plain {
			tui.PrintBanner(cmd.OutOrStdout(), parley.Version)
			runner.Renderer = tui.NewRenderer(80)
		}

		err = runner.Run(ctx, a.engine)
		if errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("session", "", "Session id to use (default a new UUID)")
	chatCmd.Flags().Int64("scenario", 0, "Start this scenario right away instead of waiting for \"start\"")
	chatCmd.Flags().Int64("default-scenario", 0, "Scenario started when you say start (overrides $PARLEY_DEFAULT_SCENARIO)")
	chatCmd.Flags().String("db-dsn", "", "Scenario database DSN (overrides $PARLEY_DB_DSN)")
	chatCmd.Flags().String("redis-addr", "", "Redis address, to continue a stored session (overrides $PARLEY_REDIS_ADDR)")
	chatCmd.Flags().Bool("headless", false, "No banner, prompts or markdown rendering")
	chatCmd.Flags().Bool("plain", false, "Print step content without markdown rendering")
}
