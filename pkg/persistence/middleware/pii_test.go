package middleware_test

import (
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor(t *testing.T) {
	r, err := middleware.NewRedactor(`(?i)phone`, `^userName$`)
	require.NoError(t, err)

	original := &domain.ConversationContext{
		SessionID: "s",
		UserName:  "Alice",
		Variables: map[string]any{
			"userName":    "Alice",
			"phoneNumber": "010-1234-5678",
			"city":        "Seoul",
			"profile":     map[string]any{"mobilePhone": "123", "age": 30},
		},
	}

	redacted := r.Redact(original)
	assert.Equal(t, middleware.Mask, redacted.Variables["userName"])
	assert.Equal(t, middleware.Mask, redacted.Variables["phoneNumber"])
	assert.Equal(t, "Seoul", redacted.Variables["city"])
	assert.Equal(t, map[string]any{"mobilePhone": middleware.Mask, "age": 30}, redacted.Variables["profile"])
	assert.Equal(t, middleware.Mask, redacted.UserName)

	assert.Equal(t, "Alice", original.Variables["userName"], "the original is untouched")
	assert.Equal(t, "123", original.Variables["profile"].(map[string]any)["mobilePhone"])
	assert.Equal(t, "Alice", original.UserName)
}

func TestRedactor_NoPatterns(t *testing.T) {
	r, err := middleware.NewRedactor()
	require.NoError(t, err)
	c := &domain.ConversationContext{Variables: map[string]any{"a": 1}}
	assert.Equal(t, c.Variables, r.Redact(c).Variables)
	assert.Nil(t, r.Redact(nil))
}

func TestNewRedactor_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactor(`(`)
	assert.Error(t, err)
}
