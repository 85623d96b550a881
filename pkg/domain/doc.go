/*
Package domain contains the core domain models of the Parley scenario engine.

It defines the authored conversation graph (Scenarios and their Steps), the
branching data carried by each step, and the per-session runtime state that the
engine mutates turn by turn. This package is kept free of I/O and persistence
concerns, following Hexagonal Architecture principles.

# Key Entities

  - Scenario: A named, authored conversation flow owned by a bot.
  - Step: One node of a scenario's directed graph (content, input expectations, branching data).
  - Conditions: The tagged union describing how a step picks its successor.
  - ConversationContext: Mutable per-session position and collected variables.
  - ExecutionResult: The sole output contract of a turn.
*/
package domain
