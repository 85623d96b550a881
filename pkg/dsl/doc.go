/*
Package dsl provides a Go DSL for building Parley scenarios in code.

It is an alternative to YAML or JSON scenario files, handy for embedded
flows and tests.

Example usage:

	b := dsl.New(1, "Greeter").Bot(1).Default()

	b.Step(1).Start().
		Say("Welcome!").
		Go(2)

	b.Step(2).
		Ask("What is your name?").
		Collect("userName", "required|min:2", "").
		Go(3)

	b.Step(3).
		Say("Nice to meet you, ${userName}!").
		Terminal()

	store, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	eng, err := parley.New(parley.WithScenarioStore(store))
*/
package dsl
