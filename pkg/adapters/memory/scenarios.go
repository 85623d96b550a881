package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// ScenarioStore implements ports.ScenarioStore in memory.
// Steps are handed out as copies; their Conditions are shared and must be
// treated as read-only.
type ScenarioStore struct {
	mu        sync.RWMutex
	scenarios map[int64]domain.Scenario
	steps     map[int64]domain.Step
	lastID    int64
	now       func() time.Time
}

// NewScenarioStore creates an empty store.
func NewScenarioStore() *ScenarioStore {
	return &ScenarioStore{
		scenarios: make(map[int64]domain.Scenario),
		steps:     make(map[int64]domain.Step),
		now:       time.Now,
	}
}

// NewFromSteps builds a store holding the given scenario and steps.
// Handy for tests and embedded flows.
func NewFromSteps(scenario domain.Scenario, steps ...domain.Step) (*ScenarioStore, error) {
	s := NewScenarioStore()
	ctx := context.Background()
	if err := s.CreateScenario(ctx, &scenario); err != nil {
		return nil, err
	}
	for i := range steps {
		step := steps[i]
		if step.ScenarioID == 0 {
			step.ScenarioID = scenario.ID
		}
		if err := s.CreateStep(ctx, &step); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// assignID keeps explicit ids and hands out fresh ones above the highest seen.
func (s *ScenarioStore) assignID(id int64) int64 {
	if id == 0 {
		s.lastID++
		return s.lastID
	}
	if id > s.lastID {
		s.lastID = id
	}
	return id
}

func (s *ScenarioStore) GetScenario(ctx context.Context, id int64) (*domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scenarios[id]
	if !ok {
		return nil, domain.ErrScenarioNotFound
	}
	return &sc, nil
}

func (s *ScenarioStore) ListScenariosByBot(ctx context.Context, botID int64) ([]domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Scenario{}
	for _, sc := range s.scenarios {
		if sc.BotID == botID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ScenarioStore) CreateScenario(ctx context.Context, scenario *domain.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scenario.ID = s.assignID(scenario.ID)
	now := s.now()
	scenario.CreatedAt, scenario.UpdatedAt = now, now
	s.scenarios[scenario.ID] = *scenario
	return nil
}

func (s *ScenarioStore) UpdateScenario(ctx context.Context, scenario *domain.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.scenarios[scenario.ID]
	if !ok {
		return domain.ErrScenarioNotFound
	}
	scenario.CreatedAt = existing.CreatedAt
	scenario.UpdatedAt = s.now()
	s.scenarios[scenario.ID] = *scenario
	return nil
}

func (s *ScenarioStore) DeleteScenario(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.scenarios, id)
	for stepID, step := range s.steps {
		if step.ScenarioID == id {
			delete(s.steps, stepID)
		}
	}
	return nil
}

func (s *ScenarioStore) GetStep(ctx context.Context, id int64) (*domain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step, ok := s.steps[id]
	if !ok {
		return nil, domain.ErrStepNotFound
	}
	return &step, nil
}

func (s *ScenarioStore) GetStepsByScenario(ctx context.Context, scenarioID int64) ([]domain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stepsOf(scenarioID), nil
}

func (s *ScenarioStore) stepsOf(scenarioID int64) []domain.Step {
	out := []domain.Step{}
	for _, step := range s.steps {
		if step.ScenarioID == scenarioID {
			out = append(out, step)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *ScenarioStore) GetStartStep(ctx context.Context, scenarioID int64) (*domain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, step := range s.stepsOf(scenarioID) {
		if step.IsStart {
			return &step, nil
		}
	}
	if sc, ok := s.scenarios[scenarioID]; ok && sc.StartStepID != nil {
		if step, ok := s.steps[*sc.StartStepID]; ok {
			return &step, nil
		}
	}
	return nil, domain.ErrStepNotFound
}

func (s *ScenarioStore) GetNextStep(ctx context.Context, currentStepID int64) (*domain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current, ok := s.steps[currentStepID]
	if !ok || current.NextStepID == nil {
		return nil, domain.ErrStepNotFound
	}
	next, ok := s.steps[*current.NextStepID]
	if !ok {
		return nil, domain.ErrStepNotFound
	}
	return &next, nil
}

func (s *ScenarioStore) CreateStep(ctx context.Context, step *domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step.ID = s.assignID(step.ID)
	now := s.now()
	step.CreatedAt, step.UpdatedAt = now, now
	s.steps[step.ID] = *step
	return nil
}

func (s *ScenarioStore) UpdateStep(ctx context.Context, step *domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.steps[step.ID]
	if !ok {
		return domain.ErrStepNotFound
	}
	step.CreatedAt = existing.CreatedAt
	step.UpdatedAt = s.now()
	s.steps[step.ID] = *step
	return nil
}

func (s *ScenarioStore) DeleteStep(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.steps, id)
	return nil
}
