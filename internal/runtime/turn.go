package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
)

// turnFunc is the body of a turn. It runs under the session lock.
type turnFunc func(ctx context.Context, h session.Handle) (*domain.ExecutionResult, error)

// guard runs fn as one turn: serialized per session, observed by hooks, and
// never failing. Errors and panics become the generic error result.
func (e *Engine) guard(ctx context.Context, sessionID string, stepID int64, input string, fn turnFunc) (result *domain.ExecutionResult) {
	ctx = withSessionID(ctx, sessionID)
	started := e.now()
	e.emitTurnStart(ctx, stepID, input)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Turn panicked",
				"session_id", sessionID,
				"step_id", stepID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = e.errorResult(e.messages.Unexpected)
		}
		e.emitTurnEnd(ctx, result, e.now().Sub(started))
	}()

	err := e.sessions.WithSession(ctx, sessionID, func(ctx context.Context, h session.Handle) error {
		var err error
		result, err = fn(ctx, h)
		return err
	})
	if err != nil {
		e.logger.Error("Turn failed", "session_id", sessionID, "step_id", stepID, "err", err)
		return e.errorResult(e.messages.Unexpected)
	}
	return result
}

// StartScenario discards any previous context of the session and presents the
// scenario's start step.
func (e *Engine) StartScenario(ctx context.Context, sessionID string, scenarioID int64) *domain.ExecutionResult {
	return e.guard(ctx, sessionID, 0, "", func(ctx context.Context, h session.Handle) (*domain.ExecutionResult, error) {
		start, err := e.startStep(ctx, scenarioID)
		if err != nil {
			e.logger.Warn("Scenario cannot be started", "session_id", sessionID, "scenario_id", scenarioID, "err", err)
			return e.errorResult(e.messages.StartFailed), nil
		}
		if err := h.Delete(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear previous context: %w", err)
		}
		e.logger.Info("Scenario started", "session_id", sessionID, "scenario_id", scenarioID, "step_id", start.ID)
		return e.turn(ctx, h, start.ID, "")
	})
}

// ExecuteStep runs one turn of the session against stepID with the user's input.
func (e *Engine) ExecuteStep(ctx context.Context, sessionID string, stepID int64, input string) *domain.ExecutionResult {
	return e.guard(ctx, sessionID, stepID, input, func(ctx context.Context, h session.Handle) (*domain.ExecutionResult, error) {
		return e.turn(ctx, h, stepID, input)
	})
}

// GetContext returns a copy of the session's context or domain.ErrSessionNotFound.
func (e *Engine) GetContext(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	return e.sessions.Load(ctx, sessionID)
}

// ClearContext forgets the session. Clearing an unknown session is a no-op.
func (e *Engine) ClearContext(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// startStep resolves the entry step, falling back to the configured
// well-known step when the scenario declares none.
func (e *Engine) startStep(ctx context.Context, scenarioID int64) (*domain.Step, error) {
	step, err := e.store.GetStartStep(ctx, scenarioID)
	if err == nil {
		return step, nil
	}
	if !errors.Is(err, domain.ErrStepNotFound) || e.fallbackStartStepID == 0 {
		return nil, err
	}
	e.logger.Warn("No start step found, using fallback",
		"scenario_id", scenarioID,
		"step_id", e.fallbackStartStepID,
	)
	return e.store.GetStep(ctx, e.fallbackStartStepID)
}

// fetchStep never fails: lookup errors are logged and reported as absence.
func (e *Engine) fetchStep(ctx context.Context, id int64) *domain.Step {
	step, err := e.store.GetStep(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrStepNotFound) {
			e.logger.Error("Step lookup failed", "step_id", id, "err", err)
		}
		return nil
	}
	return step
}

func (e *Engine) turn(ctx context.Context, h session.Handle, stepID int64, input string) (*domain.ExecutionResult, error) {
	step := e.fetchStep(ctx, stepID)
	if step == nil {
		return e.errorResult(e.messages.InvalidStep), nil
	}

	convCtx, created, err := h.GetOrCreate(ctx, func() (*domain.ConversationContext, error) {
		return domain.NewConversationContext(h.SessionID(), step, e.now()), nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		e.logger.Debug("Context created", "session_id", h.SessionID(), "step_id", step.ID)
		e.emitStepEnter(ctx, step)
	}

	trimmed := strings.TrimSpace(input)
	// An empty reply to a step the session is already waiting on is still
	// validated when the step collects a variable. Otherwise empty input
	// just presents the step.
	awaitingReply := !created && convCtx.CurrentStepID == step.ID && step.HasVariableMapping()
	if trimmed == "" && !awaitingReply {
		e.moveTo(ctx, convCtx, step, "")
		return e.present(ctx, h, convCtx, step, domain.OutcomeRendered)
	}

	switch lookupCommand(trimmed) {
	case commandMenu:
		return e.jump(ctx, h, convCtx, e.menuStepID)
	case commandHelp:
		return e.jump(ctx, h, convCtx, e.helpStepID)
	case commandEnd:
		if err := h.Delete(ctx); err != nil {
			return nil, fmt.Errorf("failed to end conversation: %w", err)
		}
		e.logger.Info("Conversation ended by user", "session_id", h.SessionID(), "step_id", step.ID)
		return e.endedResult(), nil
	}

	if step.HasVariableMapping() {
		if err := e.collector.Collect(step, input, convCtx); err != nil {
			e.logger.Debug("Input rejected", "session_id", h.SessionID(), "step_id", step.ID, "err", err)
			return e.retry(ctx, h, convCtx, step)
		}
		if step.NextStepID != nil {
			if next := e.fetchStep(ctx, *step.NextStepID); next != nil {
				return e.advance(ctx, h, convCtx, step, next, trimmed)
			}
		}
		e.moveTo(ctx, convCtx, step, "")
		return e.present(ctx, h, convCtx, step, domain.OutcomeRendered)
	}

	if nextID := e.evaluator.Evaluate(ctx, step, input, convCtx); nextID != nil {
		if next := e.fetchStep(ctx, *nextID); next != nil {
			return e.advance(ctx, h, convCtx, step, next, trimmed)
		}
	}

	outcome := domain.OutcomeRendered
	if step.Conditions != nil && step.Conditions.Kind == domain.KindUserChoice {
		outcome = domain.OutcomeAwaitingChoice
	}
	e.moveTo(ctx, convCtx, step, "")
	return e.present(ctx, h, convCtx, step, outcome)
}

// moveTo positions the context on step. Moving records the step left behind.
func (e *Engine) moveTo(ctx context.Context, convCtx *domain.ConversationContext, step *domain.Step, input string) {
	if convCtx.CurrentStepID == step.ID {
		convCtx.LastInteraction = e.now()
		return
	}
	convCtx.Advance(convCtx.CurrentStepID, step.ID, input, e.now())
	convCtx.ScenarioID = step.ScenarioID
	e.emitStepEnter(ctx, step)
}

func (e *Engine) advance(ctx context.Context, h session.Handle, convCtx *domain.ConversationContext, from, next *domain.Step, input string) (*domain.ExecutionResult, error) {
	convCtx.Advance(from.ID, next.ID, input, e.now())
	convCtx.ScenarioID = next.ScenarioID
	e.emitStepEnter(ctx, next)

	result, err := e.present(ctx, h, convCtx, next, domain.OutcomeAdvanced)
	if result != nil {
		result.NextStep = next
	}
	return result, err
}

func (e *Engine) jump(ctx context.Context, h session.Handle, convCtx *domain.ConversationContext, stepID int64) (*domain.ExecutionResult, error) {
	target := e.fetchStep(ctx, stepID)
	if target == nil {
		return e.errorResult(e.messages.InvalidStep), nil
	}
	e.moveTo(ctx, convCtx, target, "")
	return e.present(ctx, h, convCtx, target, domain.OutcomeRendered)
}
