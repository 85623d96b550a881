package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secure(t *testing.T, next ports.ContextStore, cfg middleware.EncryptionConfig) ports.ContextStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func sampleContext(sessionID string) *domain.ConversationContext {
	step := &domain.Step{ID: 3, ScenarioID: 1}
	c := domain.NewConversationContext(sessionID, step, time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC))
	c.SetVariable("secret", "my-secret-sauce")
	c.VisitedSteps = []int64{1, 2}
	return c
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	original := sampleContext("test-session")
	require.NoError(t, store.Save(ctx, "test-session", original))

	stored, err := underlying.Load(ctx, "test-session")
	require.NoError(t, err)
	assert.NotContains(t, stored.Variables, "secret")
	assert.Contains(t, stored.Variables, "__encrypted__")
	assert.Zero(t, stored.CurrentStepID)
	assert.Empty(t, stored.VisitedSteps)
	assert.Equal(t, "test-session", stored.SessionID)

	loaded, err := store.Load(ctx, "test-session")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Variables["secret"])
	assert.Equal(t, int64(3), loaded.CurrentStepID)
	assert.Equal(t, []int64{1, 2}, loaded.VisitedSteps)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"test-session"}, ids)

	require.NoError(t, store.Delete(ctx, "test-session"))
	_, err = store.Load(ctx, "test-session")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	original := sampleContext("rotation")
	original.SetVariable("data", "encrypted-with-old-key")
	require.NoError(t, oldStore.Save(ctx, "rotation", original))

	newStore := secure(t, underlying, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := newStore.Load(ctx, "rotation")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Variables["data"])

	loaded.SetVariable("data", "encrypted-with-new-key")
	require.NoError(t, newStore.Save(ctx, "rotation", loaded))

	_, err = oldStore.Load(ctx, "rotation")
	assert.Error(t, err, "the old key alone cannot read data sealed with the new key")
}

func TestEncryptionMiddleware_RefusesPlainContexts(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "plain", sampleContext("plain")))

	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := store.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestNewEncryptionMiddleware_InvalidKeys(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawURLEncoding} {
		parsed, err := middleware.ParseKey(enc.EncodeToString(key))
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	}

	_, err := middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
	_, err = middleware.ParseKey("%%%")
	assert.Error(t, err)
}
