package parley_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
)

// ExampleNew_memory runs a scenario defined in code against the in-memory stores.
func ExampleNew_memory() {
	store, err := memory.NewFromSteps(domain.Scenario{ID: 1, Name: "hello"},
		domain.Step{
			ID:      1,
			IsStart: true,
			Type:    domain.StepQuestion,
			Content: "Do you want to proceed, ${userName}?",
			Conditions: domain.ParseConditions(map[string]any{
				"type":         "conditional",
				"rules":        []any{map[string]any{"condition": `input == "yes"`, "next_step": 2}},
				"default_step": 3,
			}),
		},
		domain.Step{ID: 2, Type: domain.StepMessage, Content: "Great! You moved forward."},
		domain.Step{ID: 3, Type: domain.StepMessage, Content: "Okay, bye."},
	)
	if err != nil {
		log.Fatal(err)
	}

	engine, err := parley.New(parley.WithScenarioStore(store))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res := engine.StartScenario(ctx, "example", 1)
	fmt.Println(res.Message)

	res = engine.ExecuteStep(ctx, "example", res.CurrentStep.ID, "yes")
	fmt.Println(res.Message, res.Outcome)

	// Output:
	// Do you want to proceed, guest?
	// Great! You moved forward. advanced
}
