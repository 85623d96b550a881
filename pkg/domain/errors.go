package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrScenarioNotFound is returned when a scenario ID cannot be found in the store.
var ErrScenarioNotFound = errors.New("scenario not found")

// ErrStepNotFound is returned when a step ID cannot be found in the store.
var ErrStepNotFound = errors.New("step not found")
