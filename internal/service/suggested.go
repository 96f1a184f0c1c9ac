package service

import (
	"context"
	"log/slog"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/id"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

// SuggestedService manages the durable suggestion table.
type SuggestedService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSuggestedService creates a new suggested service.
func NewSuggestedService(store *store.Store, logger *slog.Logger) *SuggestedService {
	return &SuggestedService{
		store:  store,
		logger: logger,
	}
}

// UpsertMissing inserts each candidate whose source key is not already
// present. Existing rows are never touched: reasons and genres are
// fixed at first discovery. Returns the entries actually inserted.
func (s *SuggestedService) UpsertMissing(ctx context.Context, candidates []domain.RecommendationCandidate) ([]domain.SuggestedEntry, error) {
	var inserted []domain.SuggestedEntry

	for i := range candidates {
		c := &candidates[i]

		suggestionID, err := id.Generate("sug")
		if err != nil {
			return inserted, err
		}

		entry := domain.SuggestedEntry{
			ID:         suggestionID,
			SourceKey:  c.Key(),
			Book:       c.Recommendation,
			BaseGenres: c.BaseGenres,
			Reasons:    c.Reasons,
			Hidden:     domain.HiddenVisible,
		}

		ok, err := s.store.InsertSuggestedIfAbsent(ctx, &entry)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted = append(inserted, entry)
		}
	}

	if len(inserted) > 0 {
		s.logger.Info("suggestions stored", "inserted", len(inserted), "offered", len(candidates))
	}
	return inserted, nil
}

// Hide sets the hidden state on a set of suggestions. Unknown ids are
// reported back rather than failing the whole call.
func (s *SuggestedService) Hide(ctx context.Context, ids []string, state domain.HiddenState) (missing []string, err error) {
	for _, suggestionID := range ids {
		err := s.store.SetSuggestedHidden(ctx, suggestionID, state)
		if err == store.ErrNotFound {
			missing = append(missing, suggestionID)
			continue
		}
		if err != nil {
			return missing, err
		}
	}
	return missing, nil
}

// GetByHidden returns suggestions filtered by hidden state.
func (s *SuggestedService) GetByHidden(ctx context.Context, state domain.HiddenState) ([]domain.SuggestedEntry, error) {
	all, err := s.store.GetAllSuggested(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.SuggestedEntry
	for _, e := range all {
		if e.Hidden == state {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetVisible returns suggestions not hidden or ignored.
func (s *SuggestedService) GetVisible(ctx context.Context) ([]domain.SuggestedEntry, error) {
	return s.store.GetVisibleSuggested(ctx)
}

// GetAll returns every suggestion regardless of state.
func (s *SuggestedService) GetAll(ctx context.Context) ([]domain.SuggestedEntry, error) {
	return s.store.GetAllSuggested(ctx)
}

// Delete removes suggestions by id, returning how many were removed.
func (s *SuggestedService) Delete(ctx context.Context, ids ...string) (int, error) {
	return s.store.DeleteSuggested(ctx, ids...)
}
