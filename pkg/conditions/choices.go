package conditions

import "github.com/aretw0/parley/pkg/domain"

// ExtractChoices projects the options of a user_choice step for display.
// Any other step yields an empty list.
func ExtractChoices(step *domain.Step) []domain.ChoiceOption {
	options := []domain.ChoiceOption{}
	if step == nil || step.Conditions == nil || step.Conditions.Kind != domain.KindUserChoice {
		return options
	}
	for _, c := range step.Conditions.Choices {
		options = append(options, domain.ChoiceOption{
			Value:       c.Value,
			Label:       c.Label,
			Emoji:       c.Emoji,
			Description: c.Description,
			NextStepID:  c.NextStep,
		})
	}
	return options
}
