package domain

import (
	"strings"
	"time"
)

// CrawlStatus is the outcome of the last crawl attempt for a catalog entry.
type CrawlStatus string

const (
	// CrawlStatusOK means the entry resolved to a Hardcover book.
	CrawlStatusOK CrawlStatus = "ok"
	// CrawlStatusNotMatched means Hardcover has no counterpart for the entry.
	// This is an expected outcome, not an error.
	CrawlStatusNotMatched CrawlStatus = "not_matched"
	// CrawlStatusPending means the entry has not been crawled yet.
	CrawlStatusPending CrawlStatus = "pending"
)

// ListHit is one public list found to contain a resolved book.
type ListHit struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug,omitempty"`
	BooksCount int    `json:"books_count,omitempty"`
}

// Recommendation is a denormalized Hardcover book payload harvested
// from a list.
type Recommendation struct {
	BookID      string   `json:"book_id,omitempty"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	ISBNs       []string `json:"isbns,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Description string   `json:"description,omitempty"` // markdown
	// SourceList names the list the book was harvested from.
	SourceList string `json:"source_list,omitempty"`
}

// Key derives the stable aggregation key: external id, else slug, else
// title. Recommendations for the same book across lists share a key.
func (r *Recommendation) Key() string {
	switch {
	case r.BookID != "":
		return "id:" + r.BookID
	case r.Slug != "":
		return "slug:" + r.Slug
	default:
		return "title:" + strings.ToLower(strings.TrimSpace(r.Title))
	}
}

// CrawlCacheEntry is the cached result of the last crawl for one
// catalog entry. Invariant: Status == ok implies BookID != "".
type CrawlCacheEntry struct {
	CatalogID       int64            `json:"catalog_id"`
	BookID          string           `json:"book_id,omitempty"`
	BookTitle       string           `json:"book_title,omitempty"`
	ListCount       int              `json:"list_count"`
	RecCount        int              `json:"rec_count"`
	Status          CrawlStatus      `json:"status"`
	LastChecked     time.Time        `json:"last_checked"`
	BaseGenres      []string         `json:"base_genres,omitempty"`
	ListHits        []ListHit        `json:"list_hits,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Matched reports whether the cached entry carries a successful resolution.
func (e *CrawlCacheEntry) Matched() bool {
	return e != nil && e.Status == CrawlStatusOK && e.BookID != ""
}

// RecommendationCandidate is an aggregated recommendation within one
// aggregation pass. Transient; never persisted directly.
type RecommendationCandidate struct {
	Recommendation
	Occurrences int      `json:"occurrences"`
	Reasons     []string `json:"reasons"`
	// BaseGenres are the genres of the owned book that first surfaced
	// this candidate.
	BaseGenres []string `json:"base_genres,omitempty"`
}

// CrawlCacheStats summarizes the crawl cache for the status endpoint.
type CrawlCacheStats struct {
	Total      int `json:"total"`
	WithLists  int `json:"with_lists"`
	NotMatched int `json:"not_matched"`
	Pending    int `json:"pending"`
}
