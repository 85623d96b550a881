package domain

// ChoiceOption is the presentation projection of a user_choice entry.
type ChoiceOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Emoji       string `json:"emoji,omitempty"`
	Description string `json:"description,omitempty"`
	NextStepID  *int64 `json:"next_step_id,omitempty"`
}

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeRendered       Outcome = "rendered"
	OutcomeAdvanced       Outcome = "advanced"
	OutcomeRetry          Outcome = "retry"
	OutcomeAwaitingChoice Outcome = "awaiting_choice"
	OutcomeEnded          Outcome = "ended"
	OutcomeError          Outcome = "error"
)

// ExecutionResult is the output of a single turn.
type ExecutionResult struct {
	// CurrentStep is the step now presented to the user.
	CurrentStep *Step `json:"current_step,omitempty"`
	// NextStep is the step moved to during this turn, nil when the turn did not progress.
	NextStep *Step                `json:"next_step,omitempty"`
	Context  *ConversationContext `json:"context,omitempty"`

	Completed bool           `json:"is_completed"`
	Choices   []ChoiceOption `json:"choices"`

	// Message is the rendered reply text.
	Message      string  `json:"processed_message"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Outcome      Outcome `json:"outcome"`
}
