package dsl

import (
	"fmt"
	"sort"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
)

// Builder manages the scenario construction.
type Builder struct {
	scenario domain.Scenario
	steps    map[int64]*StepBuilder
}

// New creates a builder for one scenario.
func New(id int64, name string) *Builder {
	return &Builder{
		scenario: domain.Scenario{ID: id, Name: name},
		steps:    make(map[int64]*StepBuilder),
	}
}

// Bot sets the owning bot.
func (b *Builder) Bot(botID int64) *Builder {
	b.scenario.BotID = botID
	return b
}

// Default marks the scenario as its bot's default.
func (b *Builder) Default() *Builder {
	b.scenario.IsDefault = true
	return b
}

// Describe sets the scenario description.
func (b *Builder) Describe(description string) *Builder {
	b.scenario.Description = description
	return b
}

// Step creates a new step in the scenario.
// If the step already exists, it returns the existing builder.
func (b *Builder) Step(id int64) *StepBuilder {
	if sb, ok := b.steps[id]; ok {
		return sb
	}
	sb := &StepBuilder{
		step: domain.Step{
			ID:         id,
			ScenarioID: b.scenario.ID,
			Type:       domain.StepMessage,
			InputType:  domain.InputText,
			OrderIndex: len(b.steps) + 1,
		},
	}
	b.steps[id] = sb
	return sb
}

// Scenario returns the scenario and its steps ordered by id.
func (b *Builder) Scenario() (domain.Scenario, []domain.Step) {
	ids := make([]int64, 0, len(b.steps))
	for id := range b.steps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	steps := make([]domain.Step, 0, len(ids))
	for _, id := range ids {
		steps = append(steps, b.steps[id].Build())
	}
	return b.scenario, steps
}

// Build compiles the scenario into an in-memory store.
func (b *Builder) Build() (*memory.ScenarioStore, error) {
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", b.scenario.Name)
	}
	scenario, steps := b.Scenario()
	store, err := memory.NewFromSteps(scenario, steps...)
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario store: %w", err)
	}
	return store, nil
}
