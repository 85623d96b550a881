package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Store implements ports.ContextStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.ConversationContext
	mu   sync.RWMutex
}

// NewStore creates a new in-memory context store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ConversationContext),
	}
}

// Save persists a copy of the context.
func (s *Store) Save(ctx context.Context, sessionID string, convCtx *domain.ConversationContext) error {
	copied := convCtx.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load returns a copy so callers can't mutate stored state through the pointer.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convCtx, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return convCtx.Clone(), nil
}

// Delete removes the context.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns active sessions in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
