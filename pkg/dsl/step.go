package dsl

import "github.com/aretw0/parley/pkg/domain"

// StepBuilder provides a fluent API for configuring a step.
// Conditions accumulate in their authored form and are parsed by Build.
type StepBuilder struct {
	step       domain.Step
	conditions map[string]any
}

// Say sets the content of the step and marks it as a message.
func (s *StepBuilder) Say(content string) *StepBuilder {
	s.step.Type = domain.StepMessage
	s.step.Content = content
	return s
}

// Ask sets the content of the step and marks it as a question.
func (s *StepBuilder) Ask(content string) *StepBuilder {
	s.step.Type = domain.StepQuestion
	s.step.Content = content
	return s
}

// Input hints the expected shape of the reply.
func (s *StepBuilder) Input(inputType domain.InputType) *StepBuilder {
	s.step.InputType = inputType
	return s
}

// Start flags the step as the scenario's entry point.
func (s *StepBuilder) Start() *StepBuilder {
	s.step.IsStart = true
	return s
}

// Go sets the static next step.
func (s *StepBuilder) Go(target int64) *StepBuilder {
	s.step.NextStepID = domain.Int64(target)
	return s
}

// Choice adds a selectable option leading to target.
func (s *StepBuilder) Choice(value, label string, target int64) *StepBuilder {
	s.kind(domain.KindUserChoice)
	s.step.Type = domain.StepQuestion
	s.step.InputType = domain.InputChoice
	s.append("choices", map[string]any{"value": value, "label": label, "next_step": target})
	return s
}

// When adds an ordered boolean rule over the session variables.
func (s *StepBuilder) When(condition string, target int64) *StepBuilder {
	s.kind(domain.KindConditional)
	s.step.Type = domain.StepCondition
	s.append("rules", map[string]any{"condition": condition, "next_step": target})
	return s
}

// At adds an ordered time-of-day rule (hour, minute, weekday).
func (s *StepBuilder) At(condition string, target int64) *StepBuilder {
	s.kind(domain.KindTimeBased)
	s.step.Type = domain.StepCondition
	s.append("rules", map[string]any{"condition": condition, "next_step": target})
	return s
}

// Otherwise sets the rule fallback.
func (s *StepBuilder) Otherwise(target int64) *StepBuilder {
	s.raw()["default_step"] = target
	return s
}

// Collect stores the validated reply in a session variable.
// Rules use the pipe syntax, e.g. "required|min:2".
func (s *StepBuilder) Collect(variable, rules, message string) *StepBuilder {
	s.step.Type = domain.StepQuestion
	mapping := map[string]any{"target": variable}
	if rules != "" {
		mapping["validation"] = rules
	}
	if message != "" {
		mapping["message"] = message
	}
	s.raw()["variable_mapping"] = mapping
	return s
}

// Terminal removes every way forward.
func (s *StepBuilder) Terminal() *StepBuilder {
	s.step.NextStepID = nil
	s.conditions = nil
	return s
}

// Build returns the underlying domain.Step.
func (s *StepBuilder) Build() domain.Step {
	step := s.step
	step.Conditions = domain.ParseConditions(s.conditions)
	return step
}

func (s *StepBuilder) raw() map[string]any {
	if s.conditions == nil {
		s.conditions = make(map[string]any)
	}
	return s.conditions
}

func (s *StepBuilder) kind(k domain.ConditionKind) {
	s.raw()["type"] = string(k)
}

func (s *StepBuilder) append(key string, entry map[string]any) {
	list, _ := s.raw()[key].([]any)
	s.raw()[key] = append(list, entry)
}
