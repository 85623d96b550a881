package domain

import "time"

// Scenario is a named conversation flow owned by a bot.
type Scenario struct {
	ID          int64  `json:"id" yaml:"id"`
	BotID       int64  `json:"bot_id" yaml:"bot_id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// StartStepID is consulted when no step of the scenario is flagged as start.
	StartStepID *int64    `json:"start_step_id,omitempty" yaml:"start_step_id,omitempty"`
	IsDefault   bool      `json:"is_default" yaml:"is_default"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}
