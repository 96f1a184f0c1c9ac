package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/normalize"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

// RankingService scores stored suggestions against the current catalog
// mirror. Ranking is side-effect-free and deterministic: identical
// store and mirror state always produces identical output, and the
// suggested table is never mutated here. Deleting owned suggestions is
// the caller's responsibility after ranking.
type RankingService struct {
	store  *store.Store
	cfg    config.RankingConfig
	logger *slog.Logger
}

// NewRankingService creates a new ranking service.
func NewRankingService(store *store.Store, cfg config.RankingConfig, logger *slog.Logger) *RankingService {
	return &RankingService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// catalogSignals is the precomputed view of the mirror that scoring
// runs against.
type catalogSignals struct {
	authors    map[string]bool
	tags       map[string]bool
	titleWords map[string]bool
	// isbnOwner maps each owned normalized ISBN to its catalog id.
	isbnOwner map[string]int64
	// wantTitles are folded want-list titles; unowned suggestions
	// matching one are dropped from the ranked view (already queued
	// to read).
	wantTitles map[string]bool
}

// Rank scores the given suggestions against the current mirror.
// Suggestions whose ISBN set intersects an owned entry are returned
// with AlreadyInCalibre set so the caller can remove them; ownership
// is checked first, so a book that is both owned and on the want list
// still comes back flagged. Unowned suggestions matching a want-list
// title are excluded.
func (s *RankingService) Rank(ctx context.Context, suggestions []domain.SuggestedEntry) ([]domain.RankedSuggestion, error) {
	signals, err := s.buildSignals(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.RankedSuggestion, 0, len(suggestions))
	for i := range suggestions {
		entry := &suggestions[i]

		r := domain.RankedSuggestion{SuggestedEntry: *entry}
		s.score(&r, signals)

		if !r.AlreadyInCalibre && signals.wantTitles[normalize.Fold(entry.Book.Title)] {
			continue
		}
		ranked = append(ranked, r)
	}

	// Deterministic order: score descending, then oldest first, then id.
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].MatchScore != ranked[b].MatchScore {
			return ranked[a].MatchScore > ranked[b].MatchScore
		}
		if !ranked[a].CreatedAt.Equal(ranked[b].CreatedAt) {
			return ranked[a].CreatedAt.Before(ranked[b].CreatedAt)
		}
		return ranked[a].ID < ranked[b].ID
	})

	return ranked, nil
}

// score fills the sub-scores and the weighted total. The total is
// monotonic in every sub-score; weights come from config.
func (s *RankingService) score(r *domain.RankedSuggestion, signals *catalogSignals) {
	for _, author := range r.Book.Authors {
		if signals.authors[normalize.Fold(author)] {
			r.AuthorMatches++
		}
	}
	for _, genre := range r.BaseGenres {
		if signals.tags[normalize.Fold(genre)] {
			r.GenreMatches++
		}
	}
	// The candidate's own harvested genres act as its tag set.
	for _, tag := range r.Book.Genres {
		if signals.tags[normalize.Fold(tag)] {
			r.TagMatches++
		}
	}
	for _, word := range normalize.SignificantTitleWords(r.Book.Title, s.cfg.StopwordMinLen) {
		if signals.titleWords[word] {
			r.TitleBonusWords++
		}
	}

	titleBonus := min(r.TitleBonusWords, s.cfg.TitleBonusCap)
	r.MatchScore = s.cfg.AuthorWeight*r.AuthorMatches +
		s.cfg.GenreWeight*r.GenreMatches +
		s.cfg.TagWeight*r.TagMatches +
		s.cfg.TitleWeight*titleBonus

	for _, isbn := range normalize.ISBNSet(r.Book.ISBNs) {
		if catalogID, owned := signals.isbnOwner[isbn]; owned {
			r.AlreadyInCalibre = true
			r.MatchedCatalogID = catalogID
			break
		}
	}
}

// buildSignals reads the mirror and want list into lookup sets.
func (s *RankingService) buildSignals(ctx context.Context) (*catalogSignals, error) {
	mirror, err := s.store.GetMirror(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "read mirror", err)
	}

	signals := &catalogSignals{
		authors:    make(map[string]bool),
		tags:       make(map[string]bool),
		titleWords: make(map[string]bool),
		isbnOwner:  make(map[string]int64),
		wantTitles: make(map[string]bool),
	}

	for i := range mirror {
		e := &mirror[i]
		for _, author := range e.Authors {
			signals.authors[normalize.Fold(author)] = true
		}
		for _, tag := range e.Tags {
			signals.tags[normalize.Fold(tag)] = true
		}
		for _, word := range normalize.SignificantTitleWords(e.Title, s.cfg.StopwordMinLen) {
			signals.titleWords[word] = true
		}
		for _, isbn := range e.ISBNs {
			if _, taken := signals.isbnOwner[isbn]; !taken {
				signals.isbnOwner[isbn] = e.ID
			}
		}
	}

	wantList, err := s.store.GetWantList(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "read want list", err)
	}
	for i := range wantList {
		signals.wantTitles[normalize.Fold(wantList[i].Title)] = true
	}

	return signals, nil
}

// OwnedIDs extracts the ids of ranked suggestions flagged as already
// owned. The caller deletes them once per rank call so owned books do
// not resurface.
func OwnedIDs(ranked []domain.RankedSuggestion) []string {
	var ids []string
	for i := range ranked {
		if ranked[i].AlreadyInCalibre {
			ids = append(ids, ranked[i].ID)
		}
	}
	return ids
}
