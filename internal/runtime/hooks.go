package runtime

import (
	"context"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

type sessionKey struct{}

func withSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

func (e *Engine) base(ctx context.Context, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now(),
		Type:      t,
		SessionID: sessionIDFrom(ctx),
	}
}

func (e *Engine) emitTurnStart(ctx context.Context, stepID int64, input string) {
	if e.hooks.OnTurnStart == nil {
		return
	}
	e.hooks.OnTurnStart(ctx, &domain.TurnEvent{
		EventBase: e.base(ctx, domain.EventTurnStart),
		StepID:    stepID,
		Input:     input,
	})
}

func (e *Engine) emitTurnEnd(ctx context.Context, result *domain.ExecutionResult, elapsed time.Duration) {
	if e.hooks.OnTurnEnd == nil || result == nil {
		return
	}
	var stepID int64
	if result.CurrentStep != nil {
		stepID = result.CurrentStep.ID
	}
	e.hooks.OnTurnEnd(ctx, &domain.TurnResultEvent{
		EventBase: e.base(ctx, domain.EventTurnEnd),
		StepID:    stepID,
		Outcome:   result.Outcome,
		Completed: result.Completed,
		Duration:  elapsed,
	})
}

func (e *Engine) emitStepEnter(ctx context.Context, step *domain.Step) {
	if e.hooks.OnStepEnter == nil {
		return
	}
	e.hooks.OnStepEnter(ctx, &domain.StepEvent{
		EventBase:  e.base(ctx, domain.EventStepEnter),
		ScenarioID: step.ScenarioID,
		StepID:     step.ID,
		StepType:   step.Type,
	})
}

func (e *Engine) emitEvaluationFailure(ctx context.Context, step *domain.Step, err error) {
	if e.hooks.OnEvaluationFailure == nil {
		return
	}
	var kind domain.ConditionKind
	if step.Conditions != nil {
		kind = step.Conditions.Kind
	}
	e.hooks.OnEvaluationFailure(ctx, &domain.EvaluationEvent{
		EventBase: e.base(ctx, domain.EventEvaluationFailure),
		StepID:    step.ID,
		Kind:      kind,
		Err:       err,
	})
}
