package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydata276/reviewforge/test/database"
)

func TestSearchCatalog_NumericQueryIsExactAppIDLookup(t *testing.T) {
	st := database.NewTestStore(t)
	ctx := context.Background()

	_, err := st.UpsertGame(ctx, 101010, "Numeric Lookup Target")
	require.NoError(t, err)

	entries, total, err := st.SearchCatalog(ctx, "101010", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "Numeric Lookup Target", entries[0].Name)
}

func TestSearchCatalog_TextualQueryMatchesViaTsvectorPrefix(t *testing.T) {
	st := database.NewTestStore(t)
	ctx := context.Background()

	_, err := st.UpsertGame(ctx, 101011, "Stellar Odyssey")
	require.NoError(t, err)

	entries, total, err := st.SearchCatalog(ctx, "stel", 0, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)
	found := false
	for _, e := range entries {
		if e.AppID == 101011 {
			found = true
		}
	}
	assert.True(t, found, "prefix query for a leading word fragment must match via tsvector")
}

func TestSearchCatalog_FallsBackToLIKEWhenTsvectorMisses(t *testing.T) {
	st := database.NewTestStore(t)
	ctx := context.Background()

	_, err := st.UpsertGame(ctx, 101012, "Half-Life 2")
	require.NoError(t, err)

	// "alf" is a mid-word fragment ("h[alf]-life"): tsvector prefix matching
	// only matches from a word's start, so this must fall through to LIKE.
	entries, total, err := st.SearchCatalog(ctx, "alf", 0, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)
	found := false
	for _, e := range entries {
		if e.AppID == 101012 {
			found = true
		}
	}
	assert.True(t, found, "mid-word fragment must still be found by the LIKE fallback")
}

func TestSearchCatalog_UnknownQueryReturnsNoResults(t *testing.T) {
	st := database.NewTestStore(t)
	entries, total, err := st.SearchCatalog(context.Background(), "zzz-nonexistent-zzz", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}

func TestSearchCatalog_BlankQueryReturnsNoResults(t *testing.T) {
	st := database.NewTestStore(t)
	entries, total, err := st.SearchCatalog(context.Background(), "   ", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}

func TestRebuildCatalogIndex_SearchStillWorksAfterRebuild(t *testing.T) {
	st := database.NewTestStore(t)
	ctx := context.Background()

	_, err := st.UpsertGame(ctx, 101013, "Rebuildable Title")
	require.NoError(t, err)

	require.NoError(t, st.RebuildCatalogIndex(ctx))

	entries, _, err := st.SearchCatalog(ctx, "rebuildable", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Rebuildable Title", entries[0].Name)
}
