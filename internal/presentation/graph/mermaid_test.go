package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		steps    []domain.Step
		contains []string
	}{
		{
			name: "Start Step Shape",
			steps: []domain.Step{
				{ID: 1, Content: "Hello", IsStart: true, NextStepID: domain.Int64(2)},
			},
			contains: []string{
				`step_1(("1: Hello"))`,
				"step_1 --> step_2",
			},
		},
		{
			name: "Variable Step Shape",
			steps: []domain.Step{
				{ID: 3, Content: "Name?", Conditions: domain.ParseConditions(map[string]any{
					"variable_mapping": map[string]any{"target": "userName"},
				})},
			},
			contains: []string{`step_3[/"3: Name?"/]`},
		},
		{
			name: "Rules And Default",
			steps: []domain.Step{
				{ID: 7, Content: "Clock", Conditions: domain.ParseConditions(map[string]any{
					"type":         "time_based",
					"rules":        []any{map[string]any{"condition": `hour < 12`, "next_step": 8}},
					"default_step": 10,
				})},
			},
			contains: []string{
				`step_7{"7: Clock"}`,
				`step_7 -- "hour < 12" --> step_8`,
				`step_7 -. "default" .-> step_10`,
			},
		},
		{
			name: "Choices",
			steps: []domain.Step{
				{ID: 2, Content: "Menu", Conditions: domain.ParseConditions(map[string]any{
					"type": "user_choice",
					"choices": []any{
						map[string]any{"value": "1", "label": `Say "hi"`, "next_step": 3},
						map[string]any{"value": "2"},
					},
				})},
			},
			contains: []string{
				`step_2 -- "1. Say 'hi'" --> step_3`,
			},
		},
		{
			name: "Long Content",
			steps: []domain.Step{
				{ID: 4, Content: "**Nice** to meet you, it is a pleasure to chat today\nsecond line"},
			},
			contains: []string{`step_4["4: Nice to meet you, it is a pleas…"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(tt.steps, nil)
			assert.True(t, strings.HasPrefix(out, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			assert.NotContains(t, out, "classDef")
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	steps := []domain.Step{
		{ID: 1, IsStart: true, NextStepID: domain.Int64(2)},
		{ID: 2, NextStepID: domain.Int64(3)},
		{ID: 3},
	}
	convCtx := &domain.ConversationContext{CurrentStepID: 3, VisitedSteps: []int64{1, 2, 1, 3}}

	out := graph.GenerateMermaid(steps, graph.OverlayFrom(convCtx))
	assert.Equal(t, 1, strings.Count(out, "class step_1 visited;"))
	assert.Contains(t, out, "class step_2 visited;")
	assert.NotContains(t, out, "class step_3 visited;")
	assert.Contains(t, out, "class step_3 current;")

	assert.Nil(t, graph.OverlayFrom(nil))
}
