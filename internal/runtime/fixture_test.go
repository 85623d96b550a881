package runtime_test

import (
	"testing"
	"time"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func choices(entries ...map[string]any) map[string]any {
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	return map[string]any{"type": "user_choice", "choices": list}
}

// newScenario builds the shared support-bot graph:
//
//	1 greeting -> 2 menu {1: 5 name, 2: 6 thanks}
//	5 name (collects userName) -> 6 thanks (sink)
//	12 help -> 2
//	20 conditional on input -> 21 / 22
//	30 unknown kind -> 6, 31 broken expression -> 6
//	40 age (collects age) -> 41 age >= 18 -> 42 / 43, static 44
func newScenario(t *testing.T) *memory.ScenarioStore {
	t.Helper()
	store, err := memory.NewFromSteps(
		domain.Scenario{ID: 1, BotID: 1, Name: "support", IsDefault: true},
		domain.Step{ID: 1, Type: domain.StepMessage, Content: "Hello ${userName}!", IsStart: true, NextStepID: domain.Int64(2)},
		domain.Step{ID: 2, Type: domain.StepQuestion, Content: "How can I help?", InputType: domain.InputChoice,
			Conditions: domain.ParseConditions(choices(
				map[string]any{"value": "1", "label": "Tell my name", "next_step": 5},
				map[string]any{"value": "2", "label": "Finish", "emoji": "👋", "next_step": 6},
			))},
		domain.Step{ID: 5, Type: domain.StepQuestion, Content: "What is your name?", InputType: domain.InputText,
			NextStepID: domain.Int64(6),
			Conditions: domain.ParseConditions(map[string]any{
				"variable_mapping": map[string]any{"target": "userName", "validation": "required|min:2", "message": "Please use at least 2 characters."},
			})},
		domain.Step{ID: 6, Type: domain.StepMessage, Content: "Thanks ${userName}!"},
		domain.Step{ID: 12, Type: domain.StepMessage, Content: "Type a number to pick an option.", NextStepID: domain.Int64(2)},
		domain.Step{ID: 20, Type: domain.StepCondition, Content: "Ready?",
			Conditions: domain.ParseConditions(map[string]any{
				"type":         "conditional",
				"rules":        []any{map[string]any{"condition": `input == "yes"`, "next_step": 21}},
				"default_step": 22,
			})},
		domain.Step{ID: 21, Type: domain.StepMessage, Content: "Great."},
		domain.Step{ID: 22, Type: domain.StepMessage, Content: "Maybe later."},
		domain.Step{ID: 30, Type: domain.StepAction, Content: "Unknown", NextStepID: domain.Int64(6),
			Conditions: domain.ParseConditions(map[string]any{"type": "bogus"})},
		domain.Step{ID: 31, Type: domain.StepCondition, Content: "Broken", NextStepID: domain.Int64(6),
			Conditions: domain.ParseConditions(map[string]any{
				"type":  "conditional",
				"rules": []any{map[string]any{"condition": "((", "next_step": 21}},
			})},
		domain.Step{ID: 40, Type: domain.StepQuestion, Content: "How old are you?", InputType: domain.InputNumber,
			NextStepID: domain.Int64(41),
			Conditions: domain.ParseConditions(map[string]any{
				"variable_mapping": map[string]any{"target": "age", "validation": "required|regex:[0-9]+"},
			})},
		domain.Step{ID: 41, Type: domain.StepCondition, Content: "Checking, ${age}.", NextStepID: domain.Int64(44),
			Conditions: domain.ParseConditions(map[string]any{
				"type":         "conditional",
				"rules":        []any{map[string]any{"condition": "age >= 18", "next_step": 42}},
				"default_step": 43,
			})},
		domain.Step{ID: 42, Type: domain.StepMessage, Content: "Adult menu."},
		domain.Step{ID: 43, Type: domain.StepMessage, Content: "Junior menu."},
		domain.Step{ID: 44, Type: domain.StepMessage, Content: "Fallback."},
	)
	require.NoError(t, err)
	return store
}

func newEngine(t *testing.T, opts ...runtime.EngineOption) (*runtime.Engine, *memory.Store) {
	t.Helper()
	contexts := memory.NewStore()
	opts = append([]runtime.EngineOption{runtime.WithClock(clock)}, opts...)
	return runtime.NewEngine(newScenario(t), session.NewManager(contexts), opts...), contexts
}
