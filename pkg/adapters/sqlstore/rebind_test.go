package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", rebindDollar("SELECT a FROM t WHERE x = ? AND y = ?"))
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "n.id, n.name", prefixed("n", "id, name"))
}
