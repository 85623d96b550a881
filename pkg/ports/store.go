package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// ContextStore defines the interface for persisting conversation contexts.
type ContextStore interface {
	// Save persists the context for a given session ID.
	Save(ctx context.Context, sessionID string, convCtx *domain.ConversationContext) error

	// Load retrieves the context for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error)

	// Delete removes the context for a given session ID. Deleting an unknown
	// session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all live sessions.
	List(ctx context.Context) ([]string, error)
}
