// Package cache provides a read-through cache in front of a scenario store.
//
// Two named caches are kept. "scenarios" holds scenario lookups by id and
// "steps" holds every step-derived lookup. Any mutation routed through the
// cache drops the scenario entry and purges the whole steps cache, since a
// single step edit can change start, next and listing results alike.
// Errors are never cached.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

const (
	ScenariosCache = "scenarios"
	StepsCache     = "steps"

	DefaultMaxEntries        = 1000
	DefaultExpireAfterWrite  = 30 * time.Minute
	DefaultExpireAfterAccess = 10 * time.Minute
)

type options struct {
	maxEntries        int
	expireAfterWrite  time.Duration
	expireAfterAccess time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

// Option configures the cache.
type Option func(*options)

// WithMaxEntries bounds each named cache.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithExpireAfterWrite sets the write expiry. Zero disables it.
func WithExpireAfterWrite(d time.Duration) Option {
	return func(o *options) { o.expireAfterWrite = d }
}

// WithExpireAfterAccess sets the idle expiry. Zero disables it.
func WithExpireAfterAccess(d time.Duration) Option {
	return func(o *options) { o.expireAfterAccess = d }
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Store decorates a ports.ScenarioStore with read-through caching.
type Store struct {
	next      ports.ScenarioStore
	scenarios *named
	steps     *named
	logger    *slog.Logger
}

var _ ports.ScenarioStore = (*Store)(nil)

// New wraps next.
func New(next ports.ScenarioStore, opts ...Option) *Store {
	o := options{
		maxEntries:        DefaultMaxEntries,
		expireAfterWrite:  DefaultExpireAfterWrite,
		expireAfterAccess: DefaultExpireAfterAccess,
		now:               time.Now,
		logger:            logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		next:      next,
		scenarios: newNamed(ScenariosCache, o),
		steps:     newNamed(StepsCache, o),
		logger:    o.logger,
	}
}

// Stats reports both named caches.
func (s *Store) Stats() []Stats {
	return []Stats{s.scenarios.stats(), s.steps.stats()}
}

// Invalidate empties both caches.
func (s *Store) Invalidate() {
	s.scenarios.purge()
	s.steps.purge()
}

func (s *Store) invalidate(scenarioID int64) {
	s.scenarios.remove(scenarioKey(scenarioID))
	s.steps.purge()
	s.logger.Debug("Cache invalidated", "scenario_id", scenarioID)
}

func scenarioKey(id int64) string { return strconv.FormatInt(id, 10) }
func stepKey(id int64) string { return strconv.FormatInt(id, 10) }
func startKey(id int64) string { return fmt.Sprintf("start_%d", id) }
func nextKey(id int64) string { return fmt.Sprintf("next_%d", id) }
func byScenarioKey(id int64) string { return fmt.Sprintf("by_scenario_%d", id) }
func byBotKey(id int64) string { return fmt.Sprintf("by_bot_%d", id) }

func readThrough[T any](c *named, key string, load func() (T, error), clone func(T) T) (T, error) {
	cached, gen, ok := c.get(key)
	if ok {
		return clone(cached.(T)), nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.put(key, clone(v), gen)
	return v, nil
}

func cloneScenario(sc *domain.Scenario) *domain.Scenario {
	out := *sc
	return &out
}

func cloneStep(st *domain.Step) *domain.Step {
	out := *st
	return &out
}

func cloneSteps(steps []domain.Step) []domain.Step {
	return append([]domain.Step(nil), steps...)
}

func cloneScenarios(scs []domain.Scenario) []domain.Scenario {
	return append([]domain.Scenario(nil), scs...)
}

func (s *Store) GetScenario(ctx context.Context, id int64) (*domain.Scenario, error) {
	return readThrough(s.scenarios, scenarioKey(id), func() (*domain.Scenario, error) {
		return s.next.GetScenario(ctx, id)
	}, cloneScenario)
}

func (s *Store) ListScenariosByBot(ctx context.Context, botID int64) ([]domain.Scenario, error) {
	return readThrough(s.scenarios, byBotKey(botID), func() ([]domain.Scenario, error) {
		return s.next.ListScenariosByBot(ctx, botID)
	}, cloneScenarios)
}

func (s *Store) GetStep(ctx context.Context, id int64) (*domain.Step, error) {
	return readThrough(s.steps, stepKey(id), func() (*domain.Step, error) {
		return s.next.GetStep(ctx, id)
	}, cloneStep)
}

func (s *Store) GetStepsByScenario(ctx context.Context, scenarioID int64) ([]domain.Step, error) {
	return readThrough(s.steps, byScenarioKey(scenarioID), func() ([]domain.Step, error) {
		return s.next.GetStepsByScenario(ctx, scenarioID)
	}, cloneSteps)
}

func (s *Store) GetStartStep(ctx context.Context, scenarioID int64) (*domain.Step, error) {
	return readThrough(s.steps, startKey(scenarioID), func() (*domain.Step, error) {
		return s.next.GetStartStep(ctx, scenarioID)
	}, cloneStep)
}

func (s *Store) GetNextStep(ctx context.Context, currentStepID int64) (*domain.Step, error) {
	return readThrough(s.steps, nextKey(currentStepID), func() (*domain.Step, error) {
		return s.next.GetNextStep(ctx, currentStepID)
	}, cloneStep)
}

func (s *Store) CreateScenario(ctx context.Context, scenario *domain.Scenario) error {
	if err := s.next.CreateScenario(ctx, scenario); err != nil {
		return err
	}
	s.scenarios.purge()
	return nil
}

// UpdateScenario also drops bot listings, which embed scenario fields.
func (s *Store) UpdateScenario(ctx context.Context, scenario *domain.Scenario) error {
	defer s.Invalidate()
	return s.next.UpdateScenario(ctx, scenario)
}

func (s *Store) DeleteScenario(ctx context.Context, id int64) error {
	defer s.Invalidate()
	return s.next.DeleteScenario(ctx, id)
}

func (s *Store) CreateStep(ctx context.Context, step *domain.Step) error {
	defer s.invalidate(step.ScenarioID)
	return s.next.CreateStep(ctx, step)
}

func (s *Store) UpdateStep(ctx context.Context, step *domain.Step) error {
	defer s.invalidate(step.ScenarioID)
	return s.next.UpdateStep(ctx, step)
}

func (s *Store) DeleteStep(ctx context.Context, id int64) error {
	scenarioID := int64(0)
	if step, err := s.next.GetStep(ctx, id); err == nil {
		scenarioID = step.ScenarioID
	}
	defer s.invalidate(scenarioID)
	return s.next.DeleteStep(ctx, id)
}
