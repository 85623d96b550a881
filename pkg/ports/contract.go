package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunContextStoreContract runs a suite of tests to verify that a ContextStore
// implementation adheres to the defined interface contract.
func RunContextStoreContract(t *testing.T, store ContextStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newContext := func(id string) *domain.ConversationContext {
		return domain.NewConversationContext(id, &domain.Step{ID: 1, ScenarioID: 7}, time.Now())
	}

	t.Run("Save and Load", func(t *testing.T) {
		convCtx := newContext(sessionID)
		convCtx.SetVariable("foo", "bar")
		convCtx.SetVariable("count", 42)
		convCtx.UserName = "Ada"
		convCtx.Advance(1, 2, "hi", time.Now())

		err := store.Save(ctx, sessionID, convCtx)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, int64(2), loaded.CurrentStepID)
		assert.Equal(t, int64(7), loaded.ScenarioID)
		assert.Equal(t, "bar", loaded.Variables["foo"])
		assert.Equal(t, sessionID, loaded.Variables[domain.VarSessionID])
		assert.Equal(t, "Ada", loaded.UserName)
		assert.Equal(t, []int64{1}, loaded.VisitedSteps)
		// JSON backed stores turn ints into float64, only presence is part of the contract.
		assert.NotNil(t, loaded.Variables["count"])
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.SetVariable("mutated", true)

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotContains(t, again.Variables, "mutated")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newContext(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newContext(id1))
		_ = store.Save(ctx, id2, newContext(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunScenarioStoreContract verifies that a ScenarioStore implementation adheres
// to the defined interface contract. The store must start empty.
func RunScenarioStoreContract(t *testing.T, store ScenarioStore) {
	ctx := context.Background()

	scenario := &domain.Scenario{BotID: 3, Name: "Onboarding", Description: "First contact"}
	require.NoError(t, store.CreateScenario(ctx, scenario))
	require.NotZero(t, scenario.ID, "CreateScenario should assign an ID")

	greeting := &domain.Step{
		ScenarioID: scenario.ID,
		Type:       domain.StepMessage,
		Content:    "Hello ${userName}",
		IsStart:    true,
		OrderIndex: 1,
	}
	require.NoError(t, store.CreateStep(ctx, greeting))
	require.NotZero(t, greeting.ID)

	menu := &domain.Step{
		ScenarioID: scenario.ID,
		Type:       domain.StepQuestion,
		Content:    "Pick one",
		InputType:  domain.InputChoice,
		OrderIndex: 2,
		Conditions: domain.ParseConditions(map[string]any{
			"type": "user_choice",
			"choices": []any{
				map[string]any{"value": "1", "label": "Orders", "next_step": greeting.ID},
			},
		}),
	}
	require.NoError(t, store.CreateStep(ctx, menu))

	greeting.NextStepID = domain.Int64(menu.ID)
	require.NoError(t, store.UpdateStep(ctx, greeting))

	t.Run("GetScenario", func(t *testing.T) {
		got, err := store.GetScenario(ctx, scenario.ID)
		require.NoError(t, err)
		assert.Equal(t, "Onboarding", got.Name)
		assert.Equal(t, int64(3), got.BotID)

		_, err = store.GetScenario(ctx, scenario.ID+1000)
		assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
	})

	t.Run("ListScenariosByBot", func(t *testing.T) {
		list, err := store.ListScenariosByBot(ctx, 3)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, scenario.ID, list[0].ID)

		list, err = store.ListScenariosByBot(ctx, 99)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("UpdateScenario", func(t *testing.T) {
		scenario.Name = "Onboarding v2"
		require.NoError(t, store.UpdateScenario(ctx, scenario))

		got, err := store.GetScenario(ctx, scenario.ID)
		require.NoError(t, err)
		assert.Equal(t, "Onboarding v2", got.Name)

		missing := &domain.Scenario{ID: scenario.ID + 1000, Name: "ghost"}
		assert.ErrorIs(t, store.UpdateScenario(ctx, missing), domain.ErrScenarioNotFound)
	})

	t.Run("GetStep keeps conditions", func(t *testing.T) {
		got, err := store.GetStep(ctx, menu.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepQuestion, got.Type)
		assert.Equal(t, domain.InputChoice, got.InputType)
		require.NotNil(t, got.Conditions)
		assert.Equal(t, domain.KindUserChoice, got.Conditions.Kind)
		require.Len(t, got.Conditions.Choices, 1)
		assert.Equal(t, "1", got.Conditions.Choices[0].Value)
		assert.Equal(t, greeting.ID, *got.Conditions.Choices[0].NextStep)

		_, err = store.GetStep(ctx, menu.ID+1000)
		assert.ErrorIs(t, err, domain.ErrStepNotFound)
	})

	t.Run("GetStepsByScenario is ordered", func(t *testing.T) {
		steps, err := store.GetStepsByScenario(ctx, scenario.ID)
		require.NoError(t, err)
		require.Len(t, steps, 2)
		assert.Equal(t, greeting.ID, steps[0].ID)
		assert.Equal(t, menu.ID, steps[1].ID)
	})

	t.Run("GetStartStep", func(t *testing.T) {
		got, err := store.GetStartStep(ctx, scenario.ID)
		require.NoError(t, err)
		assert.Equal(t, greeting.ID, got.ID)
	})

	t.Run("GetNextStep", func(t *testing.T) {
		got, err := store.GetNextStep(ctx, greeting.ID)
		require.NoError(t, err)
		assert.Equal(t, menu.ID, got.ID)

		_, err = store.GetNextStep(ctx, menu.ID)
		assert.ErrorIs(t, err, domain.ErrStepNotFound, "a step without static successor has no next step")
	})

	t.Run("GetStartStep falls back to scenario start reference", func(t *testing.T) {
		other := &domain.Scenario{BotID: 3, Name: "Fallback"}
		require.NoError(t, store.CreateScenario(ctx, other))
		step := &domain.Step{ScenarioID: other.ID, Type: domain.StepMessage, Content: "x"}
		require.NoError(t, store.CreateStep(ctx, step))

		_, err := store.GetStartStep(ctx, other.ID)
		assert.ErrorIs(t, err, domain.ErrStepNotFound)

		other.StartStepID = domain.Int64(step.ID)
		require.NoError(t, store.UpdateScenario(ctx, other))

		got, err := store.GetStartStep(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, step.ID, got.ID)

		require.NoError(t, store.DeleteScenario(ctx, other.ID))
	})

	t.Run("DeleteStep", func(t *testing.T) {
		extra := &domain.Step{ScenarioID: scenario.ID, Type: domain.StepMessage, Content: "bye", OrderIndex: 3}
		require.NoError(t, store.CreateStep(ctx, extra))
		require.NoError(t, store.DeleteStep(ctx, extra.ID))

		_, err := store.GetStep(ctx, extra.ID)
		assert.ErrorIs(t, err, domain.ErrStepNotFound)
	})

	t.Run("DeleteScenario removes steps", func(t *testing.T) {
		require.NoError(t, store.DeleteScenario(ctx, scenario.ID))

		_, err := store.GetScenario(ctx, scenario.ID)
		assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
		_, err = store.GetStep(ctx, greeting.ID)
		assert.ErrorIs(t, err, domain.ErrStepNotFound)

		steps, err := store.GetStepsByScenario(ctx, scenario.ID)
		require.NoError(t, err)
		assert.Empty(t, steps)
	})
}
