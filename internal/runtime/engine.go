package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/conditions"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/interpolation"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
	"github.com/aretw0/parley/pkg/variables"
)

// Default well-known step ids used by meta-commands and the start fallback.
const (
	DefaultMenuStepID          int64 = 2
	DefaultHelpStepID          int64 = 12
	DefaultFallbackStartStepID int64 = 1
)

// ConditionEvaluator picks the step a reply leads to, or nil.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, step *domain.Step, input string, convCtx *domain.ConversationContext) *int64
}

// VariableCollector validates a reply and stores it into the context.
type VariableCollector interface {
	Collect(step *domain.Step, input string, convCtx *domain.ConversationContext) error
	ValidationMessage(step *domain.Step) string
}

// TemplateProcessor renders step content.
type TemplateProcessor interface {
	Process(template string, convCtx *domain.ConversationContext) string
}

// Messages are the user-facing texts of terminal results.
type Messages struct {
	InvalidStep string
	StartFailed string
	Unexpected  string
	Ended       string
}

// DefaultMessages is used unless WithMessages overrides it.
var DefaultMessages = Messages{
	InvalidStep: "That step is not available. Please start again from the beginning.",
	StartFailed: "The scenario could not be started. Please try again.",
	Unexpected:  "Something went wrong while processing your message.",
	Ended:       "The conversation has ended. Come back any time!",
}

// Engine runs conversational turns over an authored step graph.
type Engine struct {
	store     ports.ScenarioReader
	sessions  *session.Manager
	evaluator ConditionEvaluator
	collector VariableCollector
	processor TemplateProcessor

	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	now      func() time.Time
	messages Messages

	menuStepID          int64
	helpStepID          int64
	fallbackStartStepID int64
}

// EngineOption defines a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides time.Now for context timestamps and turn durations.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithConditionEvaluator replaces the default evaluator. The replacement is
// responsible for its own failure reporting.
func WithConditionEvaluator(evaluator ConditionEvaluator) EngineOption {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

func WithVariableCollector(collector VariableCollector) EngineOption {
	return func(e *Engine) {
		e.collector = collector
	}
}

func WithTemplateProcessor(processor TemplateProcessor) EngineOption {
	return func(e *Engine) {
		e.processor = processor
	}
}

// WithMessages overrides the terminal result texts. Empty fields keep their default.
func WithMessages(m Messages) EngineOption {
	return func(e *Engine) {
		if m.InvalidStep != "" {
			e.messages.InvalidStep = m.InvalidStep
		}
		if m.StartFailed != "" {
			e.messages.StartFailed = m.StartFailed
		}
		if m.Unexpected != "" {
			e.messages.Unexpected = m.Unexpected
		}
		if m.Ended != "" {
			e.messages.Ended = m.Ended
		}
	}
}

// WithMenuStep sets the step the menu/restart/start commands route to.
func WithMenuStep(id int64) EngineOption {
	return func(e *Engine) {
		e.menuStepID = id
	}
}

// WithHelpStep sets the step the help command routes to.
func WithHelpStep(id int64) EngineOption {
	return func(e *Engine) {
		e.helpStepID = id
	}
}

// WithFallbackStartStep sets the step used when a scenario has no start step.
// Zero disables the fallback.
func WithFallbackStartStep(id int64) EngineOption {
	return func(e *Engine) {
		e.fallbackStartStepID = id
	}
}

// NewEngine creates a new engine. Turns for one session are serialized
// through sessions.
func NewEngine(store ports.ScenarioReader, sessions *session.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		store:               store,
		sessions:            sessions,
		logger:              logging.NewNop(),
		now:                 time.Now,
		messages:            DefaultMessages,
		menuStepID:          DefaultMenuStepID,
		helpStepID:          DefaultHelpStepID,
		fallbackStartStepID: DefaultFallbackStartStepID,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.evaluator == nil {
		e.evaluator = conditions.NewEvaluator(
			conditions.WithLogger(e.logger),
			conditions.WithClock(e.now),
			conditions.WithFailureHandler(e.emitEvaluationFailure),
		)
	}
	if e.collector == nil {
		e.collector = variables.NewCollector(variables.WithLogger(e.logger))
	}
	if e.processor == nil {
		e.processor = interpolation.NewProcessor(
			interpolation.WithLogger(e.logger),
			interpolation.WithClock(e.now),
		)
	}
	return e
}

// Messages returns the terminal result texts in effect.
func (e *Engine) Messages() Messages {
	return e.messages
}
