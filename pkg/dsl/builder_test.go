package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greeter() *dsl.Builder {
	b := dsl.New(1, "Greeter").Bot(1).Default()

	b.Step(1).Start().
		Say("Welcome!").
		Go(2)

	b.Step(2).
		Ask("Shall we get to know each other?").
		Choice("yes", "Yes", 3).
		Choice("no", "No", 5)

	b.Step(3).
		Ask("What is your name?").
		Collect("userName", "required|min:2", "Two letters at least.").
		Go(4)

	b.Step(4).
		Say("Nice to meet you, ${userName}!").
		Terminal()

	b.Step(5).
		Say("Maybe later.").
		Terminal()

	return b
}

func TestBuilder_Steps(t *testing.T) {
	scenario, steps := greeter().Scenario()
	assert.Equal(t, int64(1), scenario.BotID)
	assert.True(t, scenario.IsDefault)
	require.Len(t, steps, 5)

	start := steps[0]
	assert.True(t, start.IsStart)
	assert.Equal(t, domain.StepMessage, start.Type)
	require.NotNil(t, start.NextStepID)
	assert.Equal(t, int64(2), *start.NextStepID)
	assert.Nil(t, start.Conditions)

	menu := steps[1]
	assert.Equal(t, domain.StepQuestion, menu.Type)
	assert.Equal(t, domain.InputChoice, menu.InputType)
	require.NotNil(t, menu.Conditions)
	require.NoError(t, menu.Conditions.ParseErr)
	assert.Equal(t, domain.KindUserChoice, menu.Conditions.Kind)
	require.Len(t, menu.Conditions.Choices, 2)
	assert.Equal(t, "no", menu.Conditions.Choices[1].Value)
	require.NotNil(t, menu.Conditions.Choices[1].NextStep)
	assert.Equal(t, int64(5), *menu.Conditions.Choices[1].NextStep)

	ask := steps[2]
	assert.True(t, ask.HasVariableMapping())
	assert.Equal(t, "userName", ask.Conditions.VariableMapping.Target)
	assert.Equal(t, "required|min:2", ask.Conditions.VariableMapping.Validation)

	assert.True(t, steps[3].IsSink())
}

func TestBuilder_Rules(t *testing.T) {
	b := dsl.New(7, "Router")
	b.Step(1).Start().
		When(`userName != ""`, 2).
		When(`lastInput == "skip"`, 3).
		Otherwise(4)
	b.Step(2).At("hour < 12", 3).Otherwise(4)

	_, steps := b.Scenario()
	rules := steps[0].Conditions
	require.NotNil(t, rules)
	assert.Equal(t, domain.KindConditional, rules.Kind)
	assert.Equal(t, domain.StepCondition, steps[0].Type)
	require.Len(t, rules.Rules, 2)
	assert.Equal(t, `lastInput == "skip"`, rules.Rules[1].Condition)
	require.NotNil(t, rules.DefaultStep)
	assert.Equal(t, int64(4), *rules.DefaultStep)

	assert.Equal(t, domain.KindTimeBased, steps[1].Conditions.Kind)
	assert.Equal(t, int64(7), steps[1].ScenarioID)
}

func TestBuilder_StepIsReused(t *testing.T) {
	b := dsl.New(1, "Twice")
	b.Step(1).Say("first")
	b.Step(1).Go(2)

	_, steps := b.Scenario()
	require.Len(t, steps, 1)
	assert.Equal(t, "first", steps[0].Content)
	assert.Equal(t, int64(2), *steps[0].NextStepID)
}

func TestBuilder_Empty(t *testing.T) {
	_, err := dsl.New(1, "Nothing").Build()
	assert.Error(t, err)
}

func TestBuilder_RunsOnEngine(t *testing.T) {
	store, err := greeter().Build()
	require.NoError(t, err)

	eng, err := parley.New(parley.WithScenarioStore(store))
	require.NoError(t, err)

	ctx := context.Background()
	res := eng.StartScenario(ctx, "dsl", 1)
	assert.Equal(t, "Welcome!", res.Message)

	res = eng.ExecuteStep(ctx, "dsl", 1, "ok")
	require.Len(t, res.Choices, 2)

	res = eng.ExecuteStep(ctx, "dsl", 2, "yes")
	assert.Equal(t, int64(3), res.CurrentStep.ID)

	res = eng.ExecuteStep(ctx, "dsl", 3, "Ada")
	assert.Equal(t, "Nice to meet you, Ada!", res.Message)
	assert.Equal(t, "Ada", res.Context.UserName)
}
