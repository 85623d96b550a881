package domain

import "time"

// StepType classifies what a step does when presented.
type StepType string

const (
	StepMessage   StepType = "message"
	StepQuestion  StepType = "question"
	StepCondition StepType = "condition"
	StepAction    StepType = "action"
)

// InputType hints the transport about the expected shape of the user's reply.
type InputType string

const (
	InputText   InputType = "text"
	InputNumber InputType = "number"
	InputEmail  InputType = "email"
	InputPhone  InputType = "phone"
	InputYesNo  InputType = "yes_no"
	InputChoice InputType = "choice"
)

// Step is one node of a scenario's directed graph.
type Step struct {
	ID         int64       `json:"id"`
	ScenarioID int64       `json:"scenario_id"`
	Type       StepType    `json:"step_type"`
	Content    string      `json:"content"`
	InputType  InputType   `json:"input_type,omitempty"`
	Conditions *Conditions `json:"conditions,omitempty"`
	NextStepID *int64      `json:"next_step_id,omitempty"`
	IsStart    bool        `json:"is_start_step"`
	OrderIndex int         `json:"order_index"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// HasVariableMapping reports whether the step collects a variable from the reply.
func (s *Step) HasVariableMapping() bool {
	return s != nil && s.Conditions != nil && s.Conditions.VariableMapping != nil
}

// IsSink reports whether the step has no way forward at all.
func (s *Step) IsSink() bool {
	return s.NextStepID == nil && !s.Conditions.CanBranch()
}

// Int64 returns a pointer to v. Handy for optional step references.
func Int64(v int64) *int64 {
	return &v
}

// ErrorStep builds the synthetic step carried by error and "ended" results.
func ErrorStep(message string) *Step {
	return &Step{
		ID:        ErrorStepID,
		Type:      StepMessage,
		Content:   message,
		InputType: InputText,
	}
}
