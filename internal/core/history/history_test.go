package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
)

func TestAddMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemory(0), 0, nil)

	log.Add(ctx, core.SearchRequest{Query: "first"})
	log.Add(ctx, core.SearchRequest{Query: "second"})

	entries := log.List(ctx)
	require.Len(t, entries, 2)
	require.Equal(t, "second", entries[0].Query)
	require.Equal(t, "first", entries[1].Query)
}

func TestAddDeduplicates(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemory(0), 0, nil)

	log.Add(ctx, core.SearchRequest{Query: "Denver Eviction", CaseType: core.CaseTypeCivil})
	log.Add(ctx, core.SearchRequest{Query: "other"})
	log.Add(ctx, core.SearchRequest{Query: "  denver eviction ", CaseType: core.CaseTypeCivil})

	entries := log.List(ctx)
	require.Len(t, entries, 2)
	require.Equal(t, "  denver eviction ", entries[0].Query)
	require.Equal(t, "other", entries[1].Query)

	log.Add(ctx, core.SearchRequest{Query: "denver eviction", CaseType: core.CaseTypeFamily})
	require.Len(t, log.List(ctx), 3, "differing filters are distinct entries")
}

func TestAddBounded(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemory(0), 3, nil)

	for i := range 5 {
		log.Add(ctx, core.SearchRequest{Query: fmt.Sprintf("q%d", i)})
	}

	entries := log.List(ctx)
	require.Len(t, entries, 3)
	require.Equal(t, "q4", entries[0].Query)
	require.Equal(t, "q2", entries[2].Query)
}

func TestBlankQueryIgnored(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemory(0), 0, nil)

	log.Add(ctx, core.SearchRequest{Query: "   "})
	require.Empty(t, log.List(ctx))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemory(0), 0, nil)

	log.Add(ctx, core.SearchRequest{Query: "q"})
	log.Clear(ctx)
	require.Empty(t, log.List(ctx))
}

func TestQuotaSwallowed(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemory(8), 0, nil)

	log.Add(ctx, core.SearchRequest{Query: "a query too long for the quota"})
	require.Empty(t, log.List(ctx))
}
