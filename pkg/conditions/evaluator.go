package conditions

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FailureHandler is notified when a payload could not be evaluated.
type FailureHandler func(ctx context.Context, step *domain.Step, err error)

// Evaluator resolves the next step of a turn.
type Evaluator struct {
	logger    *slog.Logger
	now       func() time.Time
	onFailure FailureHandler

	programs sync.Map // expression source -> *vm.Program
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used to report evaluation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithClock overrides the wall clock used by time_based rules and the hour namespace.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// WithFailureHandler registers a callback for evaluation failures.
func WithFailureHandler(fn FailureHandler) Option {
	return func(e *Evaluator) {
		e.onFailure = fn
	}
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluationError describes why a payload could not be evaluated.
type EvaluationError struct {
	StepID     int64
	Kind       domain.ConditionKind
	Expression string
	Err        error
}

func (e *EvaluationError) Error() string {
	if e.Expression != "" {
		return fmt.Sprintf("step %d: %s condition %q: %v", e.StepID, e.Kind, e.Expression, e.Err)
	}
	return fmt.Sprintf("step %d: %s conditions: %v", e.StepID, e.Kind, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Evaluate returns the id of the step the session should move to, or nil when
// the reply does not lead anywhere. A user_choice match records the choice in
// convCtx.
func (e *Evaluator) Evaluate(ctx context.Context, step *domain.Step, input string, convCtx *domain.ConversationContext) *int64 {
	c := step.Conditions
	if c.IsEmpty() || !c.Kind.Known() {
		return step.NextStepID
	}
	if c.ParseErr != nil {
		return e.fail(ctx, step, &EvaluationError{StepID: step.ID, Kind: c.Kind, Err: c.ParseErr})
	}

	switch c.Kind {
	case domain.KindUserChoice:
		return e.matchChoice(step, strings.TrimSpace(input), convCtx)
	case domain.KindConditional:
		next, err := e.firstRule(step, e.sessionEnv(input, convCtx))
		if err != nil {
			return e.fail(ctx, step, err)
		}
		return next
	case domain.KindTimeBased:
		next, err := e.firstRule(step, e.clockEnv())
		if err != nil {
			return e.fail(ctx, step, err)
		}
		return next
	default: // variable_check
		return c.DefaultStep
	}
}

func (e *Evaluator) matchChoice(step *domain.Step, input string, convCtx *domain.ConversationContext) *int64 {
	for _, choice := range step.Conditions.Choices {
		// An entry without a target cannot be taken; a later duplicate may be.
		if choice.Value != input || choice.NextStep == nil {
			continue
		}
		if convCtx != nil {
			convCtx.SetVariable(domain.VarLastChoice, choice.Value)
			convCtx.SetVariable(domain.VarLastChoiceLabel, choice.Label)
		}
		e.logger.Debug("choice matched", "step_id", step.ID, "value", choice.Value)
		return choice.NextStep
	}
	return nil
}

func (e *Evaluator) firstRule(step *domain.Step, env map[string]any) (*int64, error) {
	for _, rule := range step.Conditions.Rules {
		ok, err := e.evalBool(rule.Condition, env)
		if err != nil {
			return nil, &EvaluationError{StepID: step.ID, Kind: step.Conditions.Kind, Expression: rule.Condition, Err: err}
		}
		if ok {
			return rule.NextStep, nil
		}
	}
	return step.Conditions.DefaultStep, nil
}

func (e *Evaluator) fail(ctx context.Context, step *domain.Step, err error) *int64 {
	e.logger.Warn("condition evaluation failed, using static next step",
		"step_id", step.ID,
		"kind", step.Conditions.Kind,
		"err", err,
	)
	if e.onFailure != nil {
		e.onFailure(ctx, step, err)
	}
	return step.NextStepID
}

var decimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// numeric turns a decimal string into an int or a float64. Anything else,
// including "007" and "1e3", is returned unchanged.
func numeric(v any) any {
	s, ok := v.(string)
	if !ok || !decimal.MatchString(s) {
		return v
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return v
}

var legacyRef = regexp.MustCompile(`\$\{\s*([^}\s]+)\s*\}`)

// evalBool compiles (once per source) and runs a boolean expression.
func (e *Evaluator) evalBool(source string, env map[string]any) (bool, error) {
	source = strings.TrimSpace(legacyRef.ReplaceAllString(source, "$1"))
	if source == "" {
		return false, fmt.Errorf("empty expression")
	}

	var program *vm.Program
	if cached, ok := e.programs.Load(source); ok {
		program = cached.(*vm.Program)
	} else {
		compiled, err := expr.Compile(source,
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
		if err != nil {
			return false, fmt.Errorf("compile: %w", err)
		}
		e.programs.Store(source, compiled)
		program = compiled
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("did not return bool (got %T)", output)
	}
	return result, nil
}

func (e *Evaluator) clockEnv() map[string]any {
	now := e.now()
	return map[string]any{
		"hour":    now.Hour(),
		"minute":  now.Minute(),
		"weekday": now.Weekday().String(),
	}
}

func (e *Evaluator) sessionEnv(input string, convCtx *domain.ConversationContext) map[string]any {
	env := make(map[string]any)
	vars := map[string]any{}
	sys := map[string]any{}
	if convCtx != nil {
		for k, v := range convCtx.Variables {
			env[k] = numeric(v)
			vars[k] = v
		}
		for k, v := range convCtx.SystemVariables {
			sys[k] = v
		}
		if convCtx.UserName != "" {
			env[domain.VarUserName] = convCtx.UserName
		}
		if convCtx.UserType != "" {
			env[domain.VarUserType] = convCtx.UserType
		}
	}
	env["vars"] = vars
	env["sys"] = sys
	env["input"] = strings.TrimSpace(input)
	for k, v := range e.clockEnv() {
		env[k] = v
	}
	return env
}
