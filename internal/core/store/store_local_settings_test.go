//go:build cgo

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtcopilot/courtcopilot/internal/config"
)

func TestOpenBackendLocalFile(t *testing.T) {
	ctx := context.Background()

	backend, err := OpenBackend(ctx, config.StoreConfig{
		Driver:   "libsql",
		Path:     "file:" + t.TempDir() + "/courtcopilot.db",
		MaxBytes: 1 << 20,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	db, ok := backend.(*Store)
	require.True(t, ok)
	assert.Equal(t, "libsql", db.Driver())

	t.Run("SingleWriterWAL", func(t *testing.T) {
		assert.Equal(t, 1, db.DB.Stats().MaxOpenConnections)

		var journalMode string
		require.NoError(t, db.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
		assert.Contains(t, journalMode, "wal")

		var busyTimeout int
		require.NoError(t, db.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.GreaterOrEqual(t, busyTimeout, 1000)
	})

	t.Run("Migrated", func(t *testing.T) {
		require.NoError(t, backend.Set(ctx, "courtcopilot-cache:{\"query\":\"lease\"}", `{}`))
		keys, err := backend.Keys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})
}
