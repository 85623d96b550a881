package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_EndClearsContext(t *testing.T) {
	for _, input := range []string{"cancel", "EXIT", " Exit ", "취소", "종료"} {
		t.Run(input, func(t *testing.T) {
			engine, contexts := newEngine(t)
			ctx := context.Background()
			engine.ExecuteStep(ctx, "s1", 5, "")

			result := engine.ExecuteStep(ctx, "s1", 5, input)

			assert.True(t, result.Completed)
			assert.Equal(t, domain.OutcomeEnded, result.Outcome)
			assert.Equal(t, runtime.DefaultMessages.Ended, result.Message)
			assert.Empty(t, result.ErrorMessage)
			assert.Nil(t, result.Context)

			_, err := contexts.Load(ctx, "s1")
			assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		})
	}
}

func TestCommand_MenuMovesToMenuStep(t *testing.T) {
	for _, input := range []string{"menu", "Restart", "start", "메뉴"} {
		t.Run(input, func(t *testing.T) {
			engine, _ := newEngine(t)
			ctx := context.Background()
			engine.ExecuteStep(ctx, "s1", 5, "")

			result := engine.ExecuteStep(ctx, "s1", 5, input)

			assert.Equal(t, int64(2), result.CurrentStep.ID)
			assert.Equal(t, int64(2), result.Context.CurrentStepID)
			assert.Equal(t, []int64{5}, result.Context.VisitedSteps)
			assert.Len(t, result.Choices, 2)
			assert.NotContains(t, result.Context.Variables, "userName", "commands bypass variable collection")
		})
	}
}

func TestCommand_Help(t *testing.T) {
	engine, _ := newEngine(t)

	result := engine.ExecuteStep(context.Background(), "s1", 1, "help")

	assert.Equal(t, int64(12), result.CurrentStep.ID)
	assert.Equal(t, "Type a number to pick an option.", result.Message)
}

func TestCommand_ConfiguredStepMissing(t *testing.T) {
	engine, _ := newEngine(t, runtime.WithHelpStep(777))

	result := engine.ExecuteStep(context.Background(), "s1", 1, "help")

	assert.Equal(t, domain.OutcomeError, result.Outcome)
	assert.Equal(t, runtime.DefaultMessages.InvalidStep, result.ErrorMessage)
}

func TestCommand_OnlyExactMatches(t *testing.T) {
	assert.True(t, runtime.IsCommand("MENU"))
	assert.True(t, runtime.IsCommand("도움말"))
	assert.False(t, runtime.IsCommand("main menu"))
	assert.False(t, runtime.IsCommand(""))

	engine, _ := newEngine(t)
	result := engine.ExecuteStep(context.Background(), "s1", 5, "help me")
	require.NotNil(t, result.NextStep)
	assert.Equal(t, "help me", result.Context.UserName)
}
