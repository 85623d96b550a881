package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ConditionKind is the discriminator of a step's conditions payload.
type ConditionKind string

const (
	KindUserChoice    ConditionKind = "user_choice"
	KindConditional   ConditionKind = "conditional"
	KindTimeBased     ConditionKind = "time_based"
	KindVariableCheck ConditionKind = "variable_check"
)

// Known reports whether the kind has a dedicated evaluation algorithm.
func (k ConditionKind) Known() bool {
	switch k {
	case KindUserChoice, KindConditional, KindTimeBased, KindVariableCheck:
		return true
	}
	return false
}

// Choice is one selectable entry of a user_choice payload.
type Choice struct {
	Value       string `mapstructure:"value" json:"value"`
	Label       string `mapstructure:"label" json:"label,omitempty"`
	Emoji       string `mapstructure:"emoji" json:"emoji,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	NextStep    *int64 `mapstructure:"next_step" json:"next_step,omitempty"`
}

// Rule is one ordered entry of a conditional or time_based payload.
type Rule struct {
	Condition string `mapstructure:"condition" json:"condition"`
	NextStep  *int64 `mapstructure:"next_step" json:"next_step,omitempty"`
}

// VariableMapping declares how a step validates and stores the user's reply.
type VariableMapping struct {
	Target     string `mapstructure:"target" json:"target"`
	Validation string `mapstructure:"validation" json:"validation,omitempty"`
	Message    string `mapstructure:"message" json:"message,omitempty"`
}

// Conditions is the parsed form of a step's branching payload.
// It is built once when the step is loaded; Raw keeps the authored document.
type Conditions struct {
	Kind            ConditionKind
	Choices         []Choice
	Rules           []Rule
	DefaultStep     *int64
	VariableMapping *VariableMapping

	// Raw is the payload as authored. It is what gets persisted.
	Raw map[string]any
	// ParseErr is set when the payload could not be decoded. Evaluation of such
	// a step falls back to its static next step.
	ParseErr error
}

type conditionsPayload struct {
	Type            string           `mapstructure:"type"`
	Choices         []Choice         `mapstructure:"choices"`
	Rules           []Rule           `mapstructure:"rules"`
	DefaultStep     *int64           `mapstructure:"default_step"`
	VariableMapping *VariableMapping `mapstructure:"variable_mapping"`
}

// ParseConditions decodes a raw payload into its tagged form.
// It returns nil for an empty payload. Decoding problems are recorded in
// ParseErr instead of being returned, so a broken step still loads.
func ParseConditions(raw map[string]any) *Conditions {
	if len(raw) == 0 {
		return nil
	}

	c := &Conditions{Raw: raw}
	var payload conditionsPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &payload,
	})
	if err != nil {
		c.ParseErr = err
		return c
	}
	if err := decoder.Decode(raw); err != nil {
		c.ParseErr = fmt.Errorf("decode conditions: %w", err)
	}

	c.Kind = ConditionKind(payload.Type)
	c.Choices = payload.Choices
	c.Rules = payload.Rules
	c.DefaultStep = payload.DefaultStep
	if payload.VariableMapping != nil && payload.VariableMapping.Target != "" {
		c.VariableMapping = payload.VariableMapping
	}
	return c
}

// IsEmpty reports whether there is no payload at all.
func (c *Conditions) IsEmpty() bool {
	return c == nil || (len(c.Raw) == 0 && c.Kind == "" && c.VariableMapping == nil)
}

// CanBranch reports whether the payload references any successor step.
func (c *Conditions) CanBranch() bool {
	if c == nil {
		return false
	}
	return len(c.Choices) > 0 || len(c.Rules) > 0 || c.DefaultStep != nil
}

// MarshalJSON writes the authored payload back out.
func (c Conditions) MarshalJSON() ([]byte, error) {
	if c.Raw != nil {
		return json.Marshal(c.Raw)
	}
	return json.Marshal(c.toRaw())
}

// UnmarshalJSON parses the payload into its tagged form.
func (c *Conditions) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed := ParseConditions(raw)
	if parsed == nil {
		*c = Conditions{}
		return nil
	}
	*c = *parsed
	return nil
}

func (c Conditions) toRaw() map[string]any {
	raw := make(map[string]any)
	if c.Kind != "" {
		raw["type"] = string(c.Kind)
	}
	if len(c.Choices) > 0 {
		choices := make([]any, 0, len(c.Choices))
		for _, ch := range c.Choices {
			entry := map[string]any{"value": ch.Value, "label": ch.Label}
			if ch.Emoji != "" {
				entry["emoji"] = ch.Emoji
			}
			if ch.Description != "" {
				entry["description"] = ch.Description
			}
			if ch.NextStep != nil {
				entry["next_step"] = *ch.NextStep
			}
			choices = append(choices, entry)
		}
		raw["choices"] = choices
	}
	if len(c.Rules) > 0 {
		rules := make([]any, 0, len(c.Rules))
		for _, r := range c.Rules {
			entry := map[string]any{"condition": r.Condition}
			if r.NextStep != nil {
				entry["next_step"] = *r.NextStep
			}
			rules = append(rules, entry)
		}
		raw["rules"] = rules
	}
	if c.DefaultStep != nil {
		raw["default_step"] = *c.DefaultStep
	}
	if vm := c.VariableMapping; vm != nil {
		raw["variable_mapping"] = map[string]any{
			"target":     vm.Target,
			"validation": vm.Validation,
			"message":    vm.Message,
		}
	}
	return raw
}
