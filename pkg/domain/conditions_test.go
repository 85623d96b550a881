package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditions_UserChoice(t *testing.T) {
	c := domain.ParseConditions(map[string]any{
		"type": "user_choice",
		"choices": []any{
			map[string]any{"value": "1", "label": "Orders", "next_step": 5},
			map[string]any{"value": 2, "label": "Support", "next_step": float64(7)},
		},
	})
	require.NotNil(t, c)
	require.NoError(t, c.ParseErr)

	assert.Equal(t, domain.KindUserChoice, c.Kind)
	require.Len(t, c.Choices, 2)
	assert.Equal(t, "1", c.Choices[0].Value)
	assert.Equal(t, int64(5), *c.Choices[0].NextStep)
	assert.Equal(t, "2", c.Choices[1].Value, "numeric values are read as strings")
	assert.Equal(t, int64(7), *c.Choices[1].NextStep)
	assert.True(t, c.CanBranch())
}

func TestParseConditions_VariableMapping(t *testing.T) {
	c := domain.ParseConditions(map[string]any{
		"variable_mapping": map[string]any{
			"target":     "userName",
			"validation": "required|min:2",
		},
	})
	require.NotNil(t, c)
	assert.Equal(t, domain.ConditionKind(""), c.Kind)
	require.NotNil(t, c.VariableMapping)
	assert.Equal(t, "userName", c.VariableMapping.Target)
	assert.False(t, c.CanBranch())
	assert.False(t, c.IsEmpty())
}

func TestParseConditions_Empty(t *testing.T) {
	assert.Nil(t, domain.ParseConditions(nil))
	assert.Nil(t, domain.ParseConditions(map[string]any{}))

	var c *domain.Conditions
	assert.True(t, c.IsEmpty())
	assert.False(t, c.CanBranch())
}

func TestParseConditions_Malformed(t *testing.T) {
	c := domain.ParseConditions(map[string]any{
		"type":    "user_choice",
		"choices": "not a list",
	})
	require.NotNil(t, c)
	assert.Error(t, c.ParseErr)
	assert.Equal(t, domain.KindUserChoice, c.Kind)
}

func TestStep_UnmarshalJSONParsesConditions(t *testing.T) {
	payload := `{
		"id": 3,
		"scenario_id": 1,
		"step_type": "question",
		"content": "Pick one",
		"conditions": {"type": "conditional", "rules": [{"condition": "hour < 12", "next_step": 4}], "default_step": 6}
	}`

	var step domain.Step
	require.NoError(t, json.Unmarshal([]byte(payload), &step))
	require.NotNil(t, step.Conditions)
	assert.Equal(t, domain.KindConditional, step.Conditions.Kind)
	require.Len(t, step.Conditions.Rules, 1)
	assert.Equal(t, "hour < 12", step.Conditions.Rules[0].Condition)
	assert.Equal(t, int64(6), *step.Conditions.DefaultStep)
	assert.False(t, step.IsSink())

	out, err := json.Marshal(step)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"default_step":6`)
}

func TestConversationContext_CloneIsolation(t *testing.T) {
	step := &domain.Step{ID: 1, ScenarioID: 9}
	original := domain.NewConversationContext("s1", step, testNow)
	original.Advance(1, 2, "hello", testNow)

	clone := original.Clone()
	clone.SetVariable("color", "blue")
	clone.VisitedSteps = append(clone.VisitedSteps, 2)

	assert.NotContains(t, original.Variables, "color")
	assert.Equal(t, []int64{1}, original.VisitedSteps)
	assert.Equal(t, "s1", original.Variables[domain.VarSessionID])
	assert.Equal(t, "hello", original.Variables[domain.VarLastInput])
	assert.Equal(t, int64(2), clone.CurrentStepID)
}
