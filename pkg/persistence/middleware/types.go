// Package middleware wraps conversation context storage with encryption and
// offers redaction of sensitive session variables for display.
package middleware

import "github.com/aretw0/parley/pkg/ports"

// Middleware allows wrapping a ContextStore to add behavior.
type Middleware func(ports.ContextStore) ports.ContextStore
