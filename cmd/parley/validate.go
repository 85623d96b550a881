package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/loader"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <scenarios-file>...",
	Short: "Check scenario files for broken or unreachable steps",
	Long: `Walks every scenario from its start step (and the menu and help steps)
and reports references to missing steps, unreachable steps and malformed conditions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		var all []validator.Issue
		for _, path := range args {
			issues, err := validateFile(cmd.Context(), path, cfg.MenuStep, cfg.HelpStep)
			if err != nil {
				return err
			}
			printIssues(cmd.OutOrStdout(), path, issues)
			all = append(all, issues...)
		}
		if err := validator.Err(all); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Scenarios are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateFile checks every scenario of the file. Roots only count for the
// scenario that owns them.
func validateFile(ctx context.Context, path string, roots ...int64) ([]validator.Issue, error) {
	file, err := loader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	store := memory.NewScenarioStore()
	if err := loader.Seed(ctx, store, file); err != nil {
		return nil, err
	}

	bots := make(map[int64]bool)
	for _, def := range file.Scenarios {
		bots[def.BotID] = true
	}
	var ids []int64
	for bot := range bots {
		scenarios, err := store.ListScenariosByBot(ctx, bot)
		if err != nil {
			return nil, err
		}
		for _, sc := range scenarios {
			ids = append(ids, sc.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var issues []validator.Issue
	for _, id := range ids {
		var own []int64
		for _, root := range roots {
			if step, err := store.GetStep(ctx, root); err == nil && step.ScenarioID == id {
				own = append(own, root)
			}
		}
		found, err := validator.ValidateScenario(ctx, store, id, own...)
		if err != nil {
			return nil, err
		}
		issues = append(issues, found...)
	}
	return issues, nil
}

func printIssues(w io.Writer, path string, issues []validator.Issue) {
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s: ok\n", path)
		return
	}
	fmt.Fprintf(w, "%s: %d issue(s)\n", path, len(issues))
	for _, issue := range issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}
