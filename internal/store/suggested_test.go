package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

func sampleSuggestion(id, sourceKey, title string) *domain.SuggestedEntry {
	return &domain.SuggestedEntry{
		ID:        id,
		SourceKey: sourceKey,
		Book: domain.Recommendation{
			BookID:  "5",
			Title:   title,
			Authors: []string{"Dan Simmons"},
			Genres:  []string{"Science Fiction"},
		},
		BaseGenres: []string{"science fiction"},
		Reasons:    []string{"Dune", "Foundation"},
	}
}

func TestInsertSuggestedIfAbsent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertSuggestedIfAbsent(ctx, sampleSuggestion("sug-1", "hc:5", "Hyperion"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same source key: silently skipped, original row untouched.
	dup := sampleSuggestion("sug-2", "hc:5", "Hyperion Revised")
	dup.Reasons = []string{"Other Book"}
	inserted, err = s.InsertSuggestedIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.GetSuggested(ctx, "sug-1")
	require.NoError(t, err)
	assert.Equal(t, "Hyperion", got.Book.Title)
	assert.Equal(t, []string{"Dune", "Foundation"}, got.Reasons)

	_, err = s.GetSuggested(ctx, "sug-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetSuggestedHidden(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.InsertSuggestedIfAbsent(ctx, sampleSuggestion("sug-1", "hc:5", "Hyperion"))
	require.NoError(t, err)
	_, err = s.InsertSuggestedIfAbsent(ctx, sampleSuggestion("sug-2", "hc:9", "Ilium"))
	require.NoError(t, err)

	require.NoError(t, s.SetSuggestedHidden(ctx, "sug-1", domain.HiddenHidden))

	visible, err := s.GetVisibleSuggested(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "sug-2", visible[0].ID)

	all, err := s.GetAllSuggested(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = s.SetSuggestedHidden(ctx, "missing", domain.HiddenHidden)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSuggested(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.InsertSuggestedIfAbsent(ctx, sampleSuggestion("sug-1", "hc:5", "Hyperion"))
	require.NoError(t, err)
	_, err = s.InsertSuggestedIfAbsent(ctx, sampleSuggestion("sug-2", "hc:9", "Ilium"))
	require.NoError(t, err)

	n, err := s.DeleteSuggested(ctx, "sug-1", "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteSuggested(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := s.GetAllSuggested(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "sug-2", all[0].ID)
}
