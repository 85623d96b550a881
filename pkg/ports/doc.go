/*
Package ports defines the driven ports (interfaces) for the Parley engine.

These interfaces decouple the orchestrator from external implementations, allowing
the engine to work with various scenario repositories and session backends.

# Key Interfaces

  - ScenarioStore: Reads and mutates authored scenarios and their steps.
  - ContextStore: Persists the per-session ConversationContext.
  - DistributedLocker: Provides distributed locking for concurrent turns on one session.

Reusable contract suites (RunScenarioStoreContract, RunContextStoreContract) let
every adapter prove it honors the same semantics.
*/
package ports
