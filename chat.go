package parley

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/parley/pkg/domain"
)

// MessageType tells a chat client how to display a reply.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageChoice MessageType = "choice"
	MessageError  MessageType = "error"
	MessageInfo   MessageType = "info"
)

// Chat reply texts used outside of a running scenario.
const (
	EmptyMessageText = "Please enter a message."
	HelpText         = "Say \"start\" to begin the scenario. While it runs you can type \"menu\" to go back to the menu, \"help\" for help or \"exit\" to leave."
	UnknownText      = "I did not quite get that. Say \"start\" to begin or \"help\" to see what I can do."
	GreetingText     = "Hello! I am your assistant.\n\nWhat can I do for you? Pick an option below or say \"start\"."
	ThanksText       = "You are welcome! Say \"start\" whenever you want to go again."
	ByeText          = "Goodbye! Come back any time."
)

// ChatRequest is one message sent by a chat client.
type ChatRequest struct {
	Message string `json:"message"`
	// StepID starts the conversation at a given step when the session has no context.
	StepID int64 `json:"stepId,omitempty"`
	// ScenarioID explicitly (re)starts a scenario, ignoring Message.
	ScenarioID int64 `json:"scenarioId,omitempty"`
}

// ChatResponse is the chat projection of a turn result.
type ChatResponse struct {
	Message       string                `json:"message"`
	SessionID     string                `json:"sessionId"`
	FromBot       bool                  `json:"isFromBot"`
	MessageType   MessageType           `json:"messageType"`
	CurrentStepID *int64                `json:"currentStepId,omitempty"`
	NextStepID    *int64                `json:"nextStepId,omitempty"`
	ScenarioID    *int64                `json:"scenarioId,omitempty"`
	Completed     bool                  `json:"isScenarioEnd"`
	Choices       []domain.ChoiceOption `json:"choices"`
	Variables     map[string]any        `json:"variables,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

var startWords = []string{"start", "begin", "demo", "시작", "데모"}

var helpWords = []string{"help", "도움", "헬프"}

var greetingWords = []string{"hello", "안녕", "하이"}

var thanksWords = []string{"thank", "고마", "감사"}

var byeWords = []string{"bye", "종료", "바이"}

// Chat routes a free-form chat message. A session with a context answers at
// its current step; otherwise the request's StepID is used, and failing that
// the default scenario is started when the user asks for it.
func (e *Engine) Chat(ctx context.Context, sessionID string, req ChatRequest) *ChatResponse {
	if req.ScenarioID > 0 {
		return e.Respond(sessionID, e.StartScenario(ctx, sessionID, req.ScenarioID))
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return e.info(sessionID, MessageError, EmptyMessageText)
	}

	convCtx, err := e.GetContext(ctx, sessionID)
	switch {
	case err == nil:
		e.logger.Debug("Chat continues scenario", "session_id", sessionID, "step_id", convCtx.CurrentStepID)
		return e.Respond(sessionID, e.ExecuteStep(ctx, sessionID, convCtx.CurrentStepID, req.Message))
	case !errors.Is(err, domain.ErrSessionNotFound):
		e.logger.Error("Chat context lookup failed", "session_id", sessionID, "err", err)
		return e.info(sessionID, MessageError, e.runtime.Messages().Unexpected)
	}

	if req.StepID > 0 {
		return e.Respond(sessionID, e.ExecuteStep(ctx, sessionID, req.StepID, req.Message))
	}

	lower := strings.ToLower(message)
	switch {
	case lower == "1" || containsAny(lower, startWords):
		return e.Respond(sessionID, e.StartScenario(ctx, sessionID, e.defaultScenarioID))
	case containsAny(lower, greetingWords) || hasWord(lower, "hi"):
		resp := e.info(sessionID, MessageInfo, GreetingText)
		resp.Choices = entryChoices()
		return resp
	case lower == "?" || containsAny(lower, helpWords):
		return e.info(sessionID, MessageInfo, HelpText)
	case containsAny(lower, thanksWords):
		return e.info(sessionID, MessageInfo, ThanksText)
	case containsAny(lower, byeWords):
		return e.info(sessionID, MessageInfo, ByeText)
	}

	resp := e.info(sessionID, MessageText, UnknownText)
	resp.Choices = entryChoices()
	return resp
}

func entryChoices() []domain.ChoiceOption {
	return []domain.ChoiceOption{
		{Value: "start", Label: "Start"},
		{Value: "help", Label: "Help"},
	}
}

// Respond projects a turn result into a chat response.
func (e *Engine) Respond(sessionID string, result *domain.ExecutionResult) *ChatResponse {
	resp := &ChatResponse{
		Message:     result.Message,
		SessionID:   sessionID,
		FromBot:     true,
		MessageType: MessageText,
		Completed:   result.Completed,
		Choices:     result.Choices,
		Timestamp:   e.now(),
	}
	switch {
	case len(result.Choices) > 0:
		resp.MessageType = MessageChoice
	case result.ErrorMessage != "":
		resp.MessageType = MessageError
	}
	if resp.Choices == nil {
		resp.Choices = []domain.ChoiceOption{}
	}

	if step := result.CurrentStep; step != nil {
		resp.CurrentStepID = domain.Int64(step.ID)
		if resp.Message == "" {
			resp.Message = step.Content
		}
	}
	if result.NextStep != nil {
		resp.NextStepID = domain.Int64(result.NextStep.ID)
	}
	if c := result.Context; c != nil {
		resp.ScenarioID = domain.Int64(c.ScenarioID)
		resp.Variables = c.Variables
	}
	return resp
}

func (e *Engine) info(sessionID string, kind MessageType, text string) *ChatResponse {
	return &ChatResponse{
		Message:     text,
		SessionID:   sessionID,
		FromBot:     true,
		MessageType: kind,
		Choices:     []domain.ChoiceOption{},
		Timestamp:   e.now(),
	}
}

// hasWord matches short words that would otherwise hit inside longer ones ("hi" in "this").
func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
