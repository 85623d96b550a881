package parley

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/cache"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
)

// DefaultScenarioID is the scenario Chat starts when the user asks to begin.
const DefaultScenarioID int64 = 1

// Messages are the user-facing texts of terminal turn results.
type Messages = runtime.Messages

// ConditionEvaluator picks the step a reply leads to.
type ConditionEvaluator = runtime.ConditionEvaluator

// Engine is the high-level entry point for the Parley library.
// It composes the scenario store, the read-through cache, the session
// manager and the turn runtime behind one API.
type Engine struct {
	runtime  *runtime.Engine
	store    ports.ScenarioStore
	cache    *cache.Store
	sessions *session.Manager

	scenarios         ports.ScenarioStore
	contexts          ports.ContextStore
	locker            ports.DistributedLocker
	lockTTL           time.Duration
	cacheOpts         []cache.Option
	noCache           bool
	hooks             []domain.LifecycleHooks
	logger            *slog.Logger
	now               func() time.Time
	evaluator         ConditionEvaluator
	runtimeOpts       []runtime.EngineOption
	defaultScenarioID int64
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithScenarioStore sets where scenarios and steps are read from.
// Defaults to an empty in-memory store.
func WithScenarioStore(store ports.ScenarioStore) Option {
	return func(e *Engine) {
		e.scenarios = store
	}
}

// WithContextStore sets where conversation contexts live.
// Defaults to an in-memory store.
func WithContextStore(store ports.ContextStore) Option {
	return func(e *Engine) {
		e.contexts = store
	}
}

// WithLocker serializes turns of one session across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long a distributed session lock is held.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. It may be given more
// than once; every registered hook is called.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks)
	}
}

// WithClock overrides time.Now for timestamps, time-based conditions and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithConditionEvaluator sets a custom branching evaluator.
func WithConditionEvaluator(eval ConditionEvaluator) Option {
	return func(e *Engine) {
		e.evaluator = eval
	}
}

// WithCache tunes the read-through cache placed in front of the scenario store.
func WithCache(opts ...cache.Option) Option {
	return func(e *Engine) {
		e.cacheOpts = append(e.cacheOpts, opts...)
	}
}

// WithoutCache reads the scenario store directly.
func WithoutCache() Option {
	return func(e *Engine) {
		e.noCache = true
	}
}

// WithMenuStep sets the step the menu command routes to.
func WithMenuStep(id int64) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMenuStep(id))
	}
}

// WithHelpStep sets the step the help command routes to.
func WithHelpStep(id int64) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithHelpStep(id))
	}
}

// WithFallbackStartStep sets the step used when a scenario declares no start.
// Zero disables the fallback.
func WithFallbackStartStep(id int64) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithFallbackStartStep(id))
	}
}

// WithMessages overrides the texts of error and "ended" results.
func WithMessages(m Messages) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMessages(m))
	}
}

// WithDefaultScenario sets the scenario Chat starts on request.
func WithDefaultScenario(id int64) Option {
	return func(e *Engine) {
		e.defaultScenarioID = id
	}
}

// New initializes a new Parley Engine.
// Without options it runs entirely in memory with an empty scenario store.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		defaultScenarioID: DefaultScenarioID,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.defaultScenarioID <= 0 {
		return nil, errors.New("default scenario id must be positive")
	}
	if eng.lockTTL < 0 {
		return nil, errors.New("lock ttl must not be negative")
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.now == nil {
		eng.now = time.Now
	}
	if eng.scenarios == nil {
		eng.scenarios = memory.NewScenarioStore()
	}
	if eng.contexts == nil {
		eng.contexts = memory.NewStore()
	}

	eng.store = eng.scenarios
	if !eng.noCache {
		cacheOpts := []cache.Option{
			cache.WithLogger(eng.logger),
			cache.WithClock(eng.now),
		}
		eng.cache = cache.New(eng.scenarios, append(cacheOpts, eng.cacheOpts...)...)
		eng.store = eng.cache
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.contexts, sessionOpts...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(eng.logger),
		runtime.WithClock(eng.now),
		runtime.WithLifecycleHooks(mergeHooks(eng.hooks)),
	}
	if eng.evaluator != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithConditionEvaluator(eng.evaluator))
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.runtime = runtime.NewEngine(eng.store, eng.sessions, runtimeOpts...)
	return eng, nil
}

// StartScenario discards any context of the session and presents the
// scenario's start step.
func (e *Engine) StartScenario(ctx context.Context, sessionID string, scenarioID int64) *domain.ExecutionResult {
	return e.runtime.StartScenario(ctx, sessionID, scenarioID)
}

// ExecuteStep processes one reply of the session at the given step.
// It never fails; problems are reported as error results.
func (e *Engine) ExecuteStep(ctx context.Context, sessionID string, stepID int64, input string) *domain.ExecutionResult {
	return e.runtime.ExecuteStep(ctx, sessionID, stepID, input)
}

// GetContext returns a copy of the session's context, or domain.ErrSessionNotFound.
func (e *Engine) GetContext(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	return e.runtime.GetContext(ctx, sessionID)
}

// ClearContext removes the session's context. Clearing an unknown session is not an error.
func (e *Engine) ClearContext(ctx context.Context, sessionID string) error {
	return e.runtime.ClearContext(ctx, sessionID)
}

// Sessions lists the ids of sessions with a stored context.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Store returns the scenario store used by the engine, cache included.
// Writes through it evict the affected cache entries.
func (e *Engine) Store() ports.ScenarioStore {
	return e.store
}

// CacheStats reports the read-through cache counters, or nil when caching is off.
func (e *Engine) CacheStats() []cache.Stats {
	if e.cache == nil {
		return nil
	}
	return e.cache.Stats()
}

// DefaultScenarioID returns the scenario Chat starts on request.
func (e *Engine) DefaultScenarioID() int64 {
	return e.defaultScenarioID
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

func mergeHooks(all []domain.LifecycleHooks) domain.LifecycleHooks {
	switch len(all) {
	case 0:
		return domain.LifecycleHooks{}
	case 1:
		return all[0]
	}

	var merged domain.LifecycleHooks
	merged.OnTurnStart = func(ctx context.Context, ev *domain.TurnEvent) {
		for _, h := range all {
			if h.OnTurnStart != nil {
				h.OnTurnStart(ctx, ev)
			}
		}
	}
	merged.OnTurnEnd = func(ctx context.Context, ev *domain.TurnResultEvent) {
		for _, h := range all {
			if h.OnTurnEnd != nil {
				h.OnTurnEnd(ctx, ev)
			}
		}
	}
	merged.OnStepEnter = func(ctx context.Context, ev *domain.StepEvent) {
		for _, h := range all {
			if h.OnStepEnter != nil {
				h.OnStepEnter(ctx, ev)
			}
		}
	}
	merged.OnEvaluationFailure = func(ctx context.Context, ev *domain.EvaluationEvent) {
		for _, h := range all {
			if h.OnEvaluationFailure != nil {
				h.OnEvaluationFailure(ctx, ev)
			}
		}
	}
	return merged
}
