package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

func sampleCatalog() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{
			ID:      1,
			Title:   "Dune",
			Authors: []string{"Frank Herbert"},
			ISBNs:   []string{"9780441013593"},
			Tags:    []string{"science fiction", "favorites"},
			Path:    "Frank Herbert/Dune (1)",
		},
		{
			ID:      2,
			Title:   "Foundation",
			Authors: []string{"Isaac Asimov"},
			ISBNs:   []string{"9780553293357"},
			Tags:    []string{"science fiction"},
		},
	}
}

func TestReplaceMirrorInitial(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	result, err := s.ReplaceMirror(ctx, sampleCatalog(), "/books/metadata.db")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.ElementsMatch(t, []int64{1, 2}, result.AddedIDs)
	assert.Empty(t, result.RemovedIDs)

	entries, err := s.GetMirror(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Dune", entries[0].Title)
	assert.Equal(t, []string{"Frank Herbert"}, entries[0].Authors)
	assert.Equal(t, []string{"science fiction", "favorites"}, entries[0].Tags)
}

func TestReplaceMirrorComputesDelta(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.ReplaceMirror(ctx, sampleCatalog(), "/books/metadata.db")
	require.NoError(t, err)

	// Entry 2 removed, entry 3 added, entry 1 unchanged.
	next := []domain.CatalogEntry{
		sampleCatalog()[0],
		{ID: 3, Title: "Hyperion", Authors: []string{"Dan Simmons"}},
	}
	result, err := s.ReplaceMirror(ctx, next, "/books/metadata.db")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []int64{3}, result.AddedIDs)
	assert.Equal(t, []int64{2}, result.RemovedIDs)
}

func TestGetCatalogEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.ReplaceMirror(ctx, sampleCatalog(), "/books/metadata.db")
	require.NoError(t, err)

	e, err := s.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Dune", e.Title)

	_, err = s.GetCatalogEntry(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncStateWrittenWithMirror(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetSyncState(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	result, err := s.ReplaceMirror(ctx, sampleCatalog(), "/books/metadata.db")
	require.NoError(t, err)

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/books/metadata.db", state.SourcePath)
	assert.Equal(t, 2, state.EntryCount)
	assert.True(t, state.LastSyncAt.Equal(result.SyncedAt))

	n, err := s.CountMirror(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReplaceMirrorEmpty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.ReplaceMirror(ctx, sampleCatalog(), "/books/metadata.db")
	require.NoError(t, err)

	result, err := s.ReplaceMirror(ctx, nil, "/books/metadata.db")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.ElementsMatch(t, []int64{1, 2}, result.RemovedIDs)

	entries, err := s.GetMirror(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
