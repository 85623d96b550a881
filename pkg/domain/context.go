package domain

import (
	"fmt"
	"time"
)

// ConversationContext is the mutable per-session state of a running scenario.
// At most one exists per session id.
type ConversationContext struct {
	SessionID     string `json:"session_id"`
	ScenarioID    int64  `json:"scenario_id"`
	CurrentStepID int64  `json:"current_step_id"`

	// Variables holds free-form session variables (last write wins).
	Variables map[string]any `json:"variables"`

	// SystemVariables holds host-provided values, read-only for templates.
	SystemVariables map[string]any `json:"system_variables"`

	// Promoted copies of well-known variables.
	UserName string `json:"user_name,omitempty"`
	UserType string `json:"user_type,omitempty"`

	VisitedSteps    []int64   `json:"visited_steps"`
	LastInteraction time.Time `json:"last_interaction"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewConversationContext initializes a context positioned at the given step.
// The session id is recorded as a session variable.
func NewConversationContext(sessionID string, step *Step, now time.Time) *ConversationContext {
	return &ConversationContext{
		SessionID:       sessionID,
		ScenarioID:      step.ScenarioID,
		CurrentStepID:   step.ID,
		Variables:       map[string]any{VarSessionID: sessionID},
		SystemVariables: make(map[string]any),
		VisitedSteps:    []int64{},
		LastInteraction: now,
		CreatedAt:       now,
	}
}

// Clone returns a copy that shares no maps or slices with the receiver.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Variables = make(map[string]any, len(c.Variables))
	for k, v := range c.Variables {
		out.Variables[k] = v
	}
	out.SystemVariables = make(map[string]any, len(c.SystemVariables))
	for k, v := range c.SystemVariables {
		out.SystemVariables[k] = v
	}
	out.VisitedSteps = append([]int64{}, c.VisitedSteps...)
	return &out
}

// SetVariable writes a session variable, allocating the map if needed.
func (c *ConversationContext) SetVariable(name string, value any) {
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}
	c.Variables[name] = value
}

// StringVariable returns a session variable rendered as a string.
func (c *ConversationContext) StringVariable(name string) (string, bool) {
	v, ok := c.Variables[name]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Advance moves the context from its current step to next, recording the
// step just left and the input that caused the move.
func (c *ConversationContext) Advance(from, next int64, input string, now time.Time) {
	c.VisitedSteps = append(c.VisitedSteps, from)
	c.CurrentStepID = next
	c.LastInteraction = now
	if input != "" {
		c.SetVariable(VarLastInput, input)
	}
}
