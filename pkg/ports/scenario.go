package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// ScenarioReader exposes the lookups the orchestrator performs on every turn.
type ScenarioReader interface {
	// GetScenario returns domain.ErrScenarioNotFound when absent.
	GetScenario(ctx context.Context, id int64) (*domain.Scenario, error)
	ListScenariosByBot(ctx context.Context, botID int64) ([]domain.Scenario, error)

	// GetStep returns domain.ErrStepNotFound when absent.
	GetStep(ctx context.Context, id int64) (*domain.Step, error)
	// GetStepsByScenario returns the steps ordered by OrderIndex, then ID.
	GetStepsByScenario(ctx context.Context, scenarioID int64) ([]domain.Step, error)
	// GetStartStep returns the step flagged as start, otherwise the step
	// referenced by the scenario's StartStepID, otherwise domain.ErrStepNotFound.
	GetStartStep(ctx context.Context, scenarioID int64) (*domain.Step, error)
	// GetNextStep returns the static successor of the given step.
	GetNextStep(ctx context.Context, currentStepID int64) (*domain.Step, error)
}

// ScenarioWriter mutates authored content. Create methods assign the ID when
// it is zero and write it back into the argument.
type ScenarioWriter interface {
	CreateScenario(ctx context.Context, scenario *domain.Scenario) error
	UpdateScenario(ctx context.Context, scenario *domain.Scenario) error
	// DeleteScenario removes the scenario together with its steps.
	DeleteScenario(ctx context.Context, id int64) error

	CreateStep(ctx context.Context, step *domain.Step) error
	UpdateStep(ctx context.Context, step *domain.Step) error
	DeleteStep(ctx context.Context, id int64) error
}

// ScenarioStore is the full authored-content repository.
type ScenarioStore interface {
	ScenarioReader
	ScenarioWriter
}
