package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurnStart         EventType = "turn_start"
	EventTurnEnd           EventType = "turn_end"
	EventStepEnter         EventType = "step_enter"
	EventEvaluationFailure EventType = "evaluation_failure"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// TurnEvent is emitted when a turn begins.
type TurnEvent struct {
	EventBase
	StepID int64  `json:"step_id"`
	Input  string `json:"input,omitempty"`
}

// TurnResultEvent is emitted when a turn ends, whatever the outcome.
type TurnResultEvent struct {
	EventBase
	StepID    int64         `json:"step_id"`
	Outcome   Outcome       `json:"outcome"`
	Completed bool          `json:"completed"`
	Duration  time.Duration `json:"duration"`
}

// StepEvent is emitted when a session moves onto a step.
type StepEvent struct {
	EventBase
	ScenarioID int64    `json:"scenario_id"`
	StepID     int64    `json:"step_id"`
	StepType   StepType `json:"step_type"`
}

// EvaluationEvent is emitted when a conditions payload could not be evaluated
// and the static next step was used instead.
type EvaluationEvent struct {
	EventBase
	StepID int64         `json:"step_id"`
	Kind   ConditionKind `json:"kind"`
	Err    error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTurnStart         func(context.Context, *TurnEvent)
	OnTurnEnd           func(context.Context, *TurnResultEvent)
	OnStepEnter         func(context.Context, *StepEvent)
	OnEvaluationFailure func(context.Context, *EvaluationEvent)
}
