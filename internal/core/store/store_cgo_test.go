//go:build cgo

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/courtcopilot/courtcopilot/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Close())
}

func TestSQLStoreKV(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver:   "libsql",
		Path:     "file:" + t.TempDir() + "/courtcopilot.db",
		MaxBytes: 16,
	}

	backend, err := OpenBackend(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	_, ok, err := backend.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, backend.Set(ctx, "a", "12345678"))
	require.NoError(t, backend.Set(ctx, "a", "87654321"))
	value, ok, err := backend.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "87654321", value)

	require.NoError(t, backend.Set(ctx, "b", "12345678"))
	err = backend.Set(ctx, "c", "x")
	require.True(t, errors.Is(err, ErrQuotaExceeded))

	keys, err := backend.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, backend.Remove(ctx, "a"))
	require.NoError(t, backend.Set(ctx, "c", "x"))
}

func TestOpenBackendMemoryDriver(t *testing.T) {
	backend, err := OpenBackend(context.Background(), config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	require.Equal(t, "memory", backend.Driver())
}
