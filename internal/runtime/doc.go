// Package runtime implements the per-turn scenario state machine.
//
// A turn fetches the addressed step, loads or creates the session context and
// then, in order, handles meta-commands, variable collection and condition
// evaluation before rendering the step the session ends up on. Lookups fail
// soft and the whole turn runs under a recover guard, so callers always get an
// ExecutionResult back.
package runtime
