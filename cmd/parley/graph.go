package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [scenarios-file]",
	Short: "Export a scenario as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of one scenario. With --session the
steps visited by that conversation and its current step are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.Scenarios = args[0]
		}
		if !cmd.Flags().Changed("log-level") {
			cfg.LogLevel = "warn"
		}
		scenarioID, _ := cmd.Flags().GetInt64("scenario")
		if scenarioID == 0 {
			scenarioID = cfg.DefaultScenario
		}
		sessionID, _ := cmd.Flags().GetString("session")

		a, err := newApp(cmd.Context(), cfg, newLogger(cfg), false)
		if err != nil {
			return err
		}
		defer a.Close()

		steps, err := a.engine.Store().GetStepsByScenario(cmd.Context(), scenarioID)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return fmt.Errorf("scenario %d has no steps", scenarioID)
		}

		var overlay *graph.Overlay
		if sessionID != "" {
			convCtx, err := a.engine.GetContext(cmd.Context(), sessionID)
			switch {
			case errors.Is(err, domain.ErrSessionNotFound):
				return fmt.Errorf("session %q not found (is PARLEY_REDIS_ADDR set?)", sessionID)
			case err != nil:
				return err
			}
			overlay = graph.OverlayFrom(convCtx)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(steps, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Int64("scenario", 0, "Scenario to draw (default the default scenario)")
	graphCmd.Flags().String("session", "", "Highlight the progress of this session")
	graphCmd.Flags().String("db-dsn", "", "Scenario database DSN (overrides $PARLEY_DB_DSN)")
	graphCmd.Flags().String("redis-addr", "", "Redis address holding the session (overrides $PARLEY_REDIS_ADDR)")
}
