/*
Package parley is a per-session conversation scenario engine for building chatbots.

A scenario is a directed graph of authored steps. Each step carries content,
optionally templated with ${variables}, and a conditions payload that decides
where the user's reply leads: a list of choices, ordered boolean rules, a
time-of-day rule or a variable to collect and validate. The engine keeps one
ConversationContext per session and runs one turn per user message.

# Concept

Parley separates the authored graph (a ScenarioStore: memory, SQL or YAML
seeded) from the conversation state (a ContextStore: memory or Redis). Turns
of one session are serialized, and a turn never fails: missing steps, broken
conditions and storage errors all come back as an ExecutionResult carrying
an error message.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/parley"
		"github.com/aretw0/parley/pkg/loader"
	)

	func main() {
		store, err := loader.LoadFile("scenarios.yaml")
		if err != nil {
			log.Fatal(err)
		}

		eng, err := parley.New(parley.WithScenarioStore(store))
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		res := eng.StartScenario(ctx, "session-123", 1)
		fmt.Println(res.Message)

		for !res.Completed {
			// In a real app, this input comes from the user.
			res = eng.ExecuteStep(ctx, "session-123", res.CurrentStep.ID, "1")
			fmt.Println(res.Message)
		}
	}

For chat transports, Engine.Chat routes free-form messages and returns a
ChatResponse ready to be serialized.
*/
package parley
