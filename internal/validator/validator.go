package validator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Issue is one problem found in a scenario graph.
type Issue struct {
	ScenarioID int64
	StepID     int64
	Message    string
}

func (i Issue) String() string {
	if i.StepID == 0 {
		return fmt.Sprintf("scenario %d: %s", i.ScenarioID, i.Message)
	}
	return fmt.Sprintf("scenario %d, step %d: %s", i.ScenarioID, i.StepID, i.Message)
}

// Successors lists every step id a step can lead to, static next step first.
func Successors(step *domain.Step) []int64 {
	var out []int64
	if step.NextStepID != nil {
		out = append(out, *step.NextStepID)
	}
	c := step.Conditions
	if c == nil {
		return out
	}
	for _, ch := range c.Choices {
		if ch.NextStep != nil {
			out = append(out, *ch.NextStep)
		}
	}
	for _, r := range c.Rules {
		if r.NextStep != nil {
			out = append(out, *r.NextStep)
		}
	}
	if c.DefaultStep != nil {
		out = append(out, *c.DefaultStep)
	}
	return out
}

// ValidateScenario walks the scenario from its start step and reports broken
// links, malformed conditions and steps that can never be reached.
// extraRoots are treated as reachable entry points (menu and help steps).
func ValidateScenario(ctx context.Context, store ports.ScenarioReader, scenarioID int64, extraRoots ...int64) ([]Issue, error) {
	steps, err := store.GetStepsByScenario(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps of scenario %d: %w", scenarioID, err)
	}

	var issues []Issue
	report := func(stepID int64, format string, args ...any) {
		issues = append(issues, Issue{ScenarioID: scenarioID, StepID: stepID, Message: fmt.Sprintf(format, args...)})
	}

	start, err := store.GetStartStep(ctx, scenarioID)
	if err != nil {
		if !errors.Is(err, domain.ErrStepNotFound) {
			return nil, fmt.Errorf("failed to resolve start of scenario %d: %w", scenarioID, err)
		}
		report(0, "no start step")
	}

	var queue []int64
	if start != nil {
		queue = append(queue, start.ID)
	}
	for _, id := range extraRoots {
		if _, err := store.GetStep(ctx, id); err == nil {
			queue = append(queue, id)
		}
	}

	visited := make(map[int64]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		step, err := store.GetStep(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrStepNotFound) {
				return nil, fmt.Errorf("failed to load step %d: %w", id, err)
			}
			continue
		}

		for _, target := range Successors(step) {
			if _, err := store.GetStep(ctx, target); errors.Is(err, domain.ErrStepNotFound) {
				report(id, "missing step %d", target)
				continue
			}
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	for _, step := range steps {
		if c := step.Conditions; c != nil {
			if c.ParseErr != nil {
				report(step.ID, "malformed conditions: %v", c.ParseErr)
			}
			if c.Kind != "" && !c.Kind.Known() {
				report(step.ID, "unknown condition type %q", c.Kind)
			}
		}
		if !visited[step.ID] {
			report(step.ID, "unreachable")
		}
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].StepID < issues[j].StepID })
	return issues, nil
}

// Err folds issues into a single error, or nil when there are none.
func Err(issues []Issue) error {
	if len(issues) == 0 {
		return nil
	}
	lines := make([]string, len(issues))
	for i, is := range issues {
		lines[i] = is.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(issues), strings.Join(lines, "\n- "))
}
