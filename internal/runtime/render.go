package runtime

import (
	"context"

	"github.com/aretw0/parley/pkg/conditions"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
)

// present persists the context and renders step as the reply.
// A turn that did not progress onto a step without successors is terminal.
func (e *Engine) present(ctx context.Context, h session.Handle, convCtx *domain.ConversationContext, step *domain.Step, outcome domain.Outcome) (*domain.ExecutionResult, error) {
	if err := h.Save(ctx, convCtx); err != nil {
		return nil, err
	}
	return &domain.ExecutionResult{
		CurrentStep: step,
		Context:     convCtx.Clone(),
		Completed:   outcome != domain.OutcomeAdvanced && step.IsSink(),
		Choices:     conditions.ExtractChoices(step),
		Message:     e.processor.Process(step.Content, convCtx),
		Outcome:     outcome,
	}, nil
}

// retry re-presents step with the validation message appended. The context
// keeps its position.
func (e *Engine) retry(ctx context.Context, h session.Handle, convCtx *domain.ConversationContext, step *domain.Step) (*domain.ExecutionResult, error) {
	convCtx.LastInteraction = e.now()
	if err := h.Save(ctx, convCtx); err != nil {
		return nil, err
	}

	message := e.processor.Process(step.Content, convCtx) + "\n\n" + e.collector.ValidationMessage(step)
	retryStep := *step
	retryStep.Content = message

	return &domain.ExecutionResult{
		CurrentStep: &retryStep,
		Context:     convCtx.Clone(),
		Choices:     conditions.ExtractChoices(step),
		Message:     message,
		Outcome:     domain.OutcomeRetry,
	}, nil
}

func (e *Engine) errorResult(message string) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		CurrentStep:  domain.ErrorStep(message),
		Completed:    true,
		Choices:      []domain.ChoiceOption{},
		Message:      message,
		ErrorMessage: message,
		Outcome:      domain.OutcomeError,
	}
}

func (e *Engine) endedResult() *domain.ExecutionResult {
	return &domain.ExecutionResult{
		CurrentStep: domain.ErrorStep(e.messages.Ended),
		Completed:   true,
		Choices:     []domain.ChoiceOption{},
		Message:     e.messages.Ended,
		Outcome:     domain.OutcomeEnded,
	}
}
