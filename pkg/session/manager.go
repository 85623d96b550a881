package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to conversation contexts.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.ContextStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager over the given context store.
func NewManager(store ports.ContextStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Handle gives lock-free store access to a WithSession callback.
type Handle struct {
	store     ports.ContextStore
	sessionID string
}

// SessionID returns the session the handle is bound to.
func (h Handle) SessionID() string {
	return h.sessionID
}

// Load returns the stored context or domain.ErrSessionNotFound.
func (h Handle) Load(ctx context.Context) (*domain.ConversationContext, error) {
	return h.store.Load(ctx, h.sessionID)
}

// GetOrCreate loads the context, initializing and persisting it with init when
// absent. The boolean reports whether it was created.
func (h Handle) GetOrCreate(ctx context.Context, init func() (*domain.ConversationContext, error)) (*domain.ConversationContext, bool, error) {
	convCtx, err := h.store.Load(ctx, h.sessionID)
	if err == nil {
		return convCtx, false, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("failed to check session existence: %w", err)
	}

	convCtx, err = init()
	if err != nil {
		return nil, false, err
	}
	// Persist immediately to reserve the ID
	if err := h.store.Save(ctx, h.sessionID, convCtx); err != nil {
		return nil, false, fmt.Errorf("failed to initialize session: %w", err)
	}
	return convCtx, true, nil
}

// Save persists the context.
func (h Handle) Save(ctx context.Context, convCtx *domain.ConversationContext) error {
	return h.store.Save(ctx, h.sessionID, convCtx)
}

// Delete removes the context.
func (h Handle) Delete(ctx context.Context) error {
	return h.store.Delete(ctx, h.sessionID)
}

// WithSession runs fn while holding the lock for the session.
func (m *Manager) WithSession(ctx context.Context, sessionID string, fn func(context.Context, Handle) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx, Handle{store: m.store, sessionID: sessionID})
}

// Load retrieves an existing context.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	var convCtx *domain.ConversationContext
	err := m.WithSession(ctx, sessionID, func(ctx context.Context, h Handle) error {
		var err error
		convCtx, err = h.Load(ctx)
		return err
	})
	return convCtx, err
}

// GetOrCreate atomically loads the context or initializes it with init.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string, init func() (*domain.ConversationContext, error)) (*domain.ConversationContext, error) {
	var convCtx *domain.ConversationContext
	err := m.WithSession(ctx, sessionID, func(ctx context.Context, h Handle) error {
		var err error
		convCtx, _, err = h.GetOrCreate(ctx, init)
		return err
	})
	return convCtx, err
}

// Save persists the context.
func (m *Manager) Save(ctx context.Context, sessionID string, convCtx *domain.ConversationContext) error {
	return m.WithSession(ctx, sessionID, func(ctx context.Context, h Handle) error {
		return h.Save(ctx, convCtx)
	})
}

// Delete removes the context.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithSession(ctx, sessionID, func(ctx context.Context, h Handle) error {
		return h.Delete(ctx)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying context store.
func (m *Manager) Store() ports.ContextStore {
	return m.store
}
