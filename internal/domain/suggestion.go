package domain

import "time"

// HiddenState controls suggestion visibility.
type HiddenState int

const (
	// HiddenVisible is the default state for new suggestions.
	HiddenVisible HiddenState = 0
	// HiddenHidden removes a suggestion from the default view.
	HiddenHidden HiddenState = 1
	// HiddenIgnored marks a suggestion as permanently uninteresting.
	HiddenIgnored HiddenState = 2
)

// SuggestedEntry is a durably stored, deduplicated recommendation.
// SourceKey is unique; insertion is add-if-absent and the reasons and
// genres recorded at first discovery are never merged or refreshed.
type SuggestedEntry struct {
	ID         string         `json:"id"`
	SourceKey  string         `json:"source_key"`
	Book       Recommendation `json:"book"`
	BaseGenres []string       `json:"base_genres,omitempty"`
	Reasons    []string       `json:"reasons,omitempty"`
	Hidden     HiddenState    `json:"hidden"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RankedSuggestion is a SuggestedEntry scored against the current
// catalog mirror. Derived, never persisted.
type RankedSuggestion struct {
	SuggestedEntry
	MatchScore       int   `json:"match_score"`
	AuthorMatches    int   `json:"author_matches"`
	GenreMatches     int   `json:"genre_matches"`
	TagMatches       int   `json:"tag_matches"`
	TitleBonusWords  int   `json:"title_bonus_words"`
	AlreadyInCalibre bool  `json:"already_in_calibre"`
	MatchedCatalogID int64 `json:"matched_catalog_id,omitempty"`
}
