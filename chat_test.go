package parley_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_OutsideScenario(t *testing.T) {
	eng := newDemo(t)
	ctx := context.Background()

	resp := eng.Chat(ctx, "c1", parley.ChatRequest{Message: "   "})
	assert.Equal(t, parley.MessageError, resp.MessageType)
	assert.Equal(t, parley.EmptyMessageText, resp.Message)

	resp = eng.Chat(ctx, "c1", parley.ChatRequest{Message: "what is this"})
	assert.Equal(t, parley.MessageText, resp.MessageType)
	assert.Equal(t, parley.UnknownText, resp.Message)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "start", resp.Choices[0].Value)

	resp = eng.Chat(ctx, "c1", parley.ChatRequest{Message: "도움말"})
	assert.Equal(t, parley.MessageInfo, resp.MessageType)
	assert.True(t, resp.FromBot)
	assert.Equal(t, "c1", resp.SessionID)

	_, err := eng.GetContext(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "info replies do not start a conversation")
}

func TestChat_SmallTalk(t *testing.T) {
	eng := newDemo(t)
	ctx := context.Background()

	cases := []struct {
		message string
		kind    parley.MessageType
		text    string
		choices int
	}{
		{"Hi!", parley.MessageInfo, parley.GreetingText, 2},
		{"hello there", parley.MessageInfo, parley.GreetingText, 2},
		{"안녕하세요", parley.MessageInfo, parley.GreetingText, 2},
		{"?", parley.MessageInfo, parley.HelpText, 0},
		{"where is this going?", parley.MessageText, parley.UnknownText, 2},
		{"thanks a lot", parley.MessageInfo, parley.ThanksText, 0},
		{"감사합니다", parley.MessageInfo, parley.ThanksText, 0},
		{"ok bye", parley.MessageInfo, parley.ByeText, 0},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			resp := eng.Chat(ctx, "talk", parley.ChatRequest{Message: tc.message})
			assert.Equal(t, tc.kind, resp.MessageType)
			assert.Equal(t, tc.text, resp.Message)
			assert.Len(t, resp.Choices, tc.choices)
		})
	}

	_, err := eng.GetContext(ctx, "talk")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestChat_StartAndContinue(t *testing.T) {
	eng := newDemo(t)
	ctx := context.Background()

	resp := eng.Chat(ctx, "c2", parley.ChatRequest{Message: "Start"})
	assert.Equal(t, parley.MessageText, resp.MessageType)
	require.NotNil(t, resp.CurrentStepID)
	assert.Equal(t, int64(1), *resp.CurrentStepID)
	require.NotNil(t, resp.ScenarioID)
	assert.Equal(t, int64(1), *resp.ScenarioID)
	assert.Nil(t, resp.NextStepID)
	assert.Equal(t, "c2", resp.Variables[domain.VarSessionID])

	resp = eng.Chat(ctx, "c2", parley.ChatRequest{Message: "ok"})
	assert.Equal(t, parley.MessageChoice, resp.MessageType)
	require.NotNil(t, resp.NextStepID)
	assert.Equal(t, int64(2), *resp.NextStepID)
	assert.Len(t, resp.Choices, 4)

	resp = eng.Chat(ctx, "c2", parley.ChatRequest{Message: "exit"})
	assert.True(t, resp.Completed)
	assert.Equal(t, parley.MessageText, resp.MessageType)
	assert.Equal(t, domain.ErrorStepID, *resp.CurrentStepID)
	assert.Nil(t, resp.ScenarioID)

	resp = eng.Chat(ctx, "c2", parley.ChatRequest{Message: "what now"})
	assert.Equal(t, parley.UnknownText, resp.Message)
}

func TestChat_StepIDStartsThere(t *testing.T) {
	eng := newDemo(t)

	resp := eng.Chat(context.Background(), "c3", parley.ChatRequest{Message: "Grace", StepID: 3})
	require.NotNil(t, resp.CurrentStepID)
	assert.Equal(t, int64(4), *resp.CurrentStepID)
	assert.Equal(t, "Nice to meet you, Grace!", resp.Message)
	assert.Equal(t, "Grace", resp.Variables[domain.VarUserName])
}

func TestChat_ExplicitScenarioRestarts(t *testing.T) {
	eng := newDemo(t)
	ctx := context.Background()

	eng.Chat(ctx, "c4", parley.ChatRequest{Message: "start"})
	eng.Chat(ctx, "c4", parley.ChatRequest{Message: "ok"})

	resp := eng.Chat(ctx, "c4", parley.ChatRequest{ScenarioID: 1})
	assert.Equal(t, int64(1), *resp.CurrentStepID)

	resp = eng.Chat(ctx, "c5", parley.ChatRequest{ScenarioID: 77})
	assert.Equal(t, int64(1), *resp.CurrentStepID, "unknown scenarios fall back to step 1")

	strict := newDemo(t, parley.WithFallbackStartStep(0))
	resp = strict.Chat(ctx, "c5", parley.ChatRequest{ScenarioID: 77})
	assert.Equal(t, parley.MessageError, resp.MessageType)
	assert.True(t, resp.Completed)
}

func TestRespond_Projection(t *testing.T) {
	eng := newDemo(t)

	resp := eng.Respond("s", &domain.ExecutionResult{
		CurrentStep:  domain.ErrorStep("broken"),
		ErrorMessage: "broken",
		Completed:    true,
	})
	assert.Equal(t, parley.MessageError, resp.MessageType)
	assert.Equal(t, "broken", resp.Message, "falls back to step content")
	assert.NotNil(t, resp.Choices)
	assert.Nil(t, resp.Variables)
}
