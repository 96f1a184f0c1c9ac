package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Result holds the outcome of one catalog search.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matching catalog entry.
type Hit struct {
	CatalogID  int64             `json:"catalog_id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Authors    []string          `json:"authors,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search runs a fuzzy-tolerant match over titles, authors, and tags.
// An exact ISBN in the query short-circuits to a keyword match.
func (s *CatalogIndex) Search(ctx context.Context, queryStr string, limit int) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	searchRequest := bleve.NewSearchRequestOptions(buildQuery(queryStr), limit, 0, false)
	searchRequest.Fields = []string{"title", "authors", "tags"}
	searchRequest.Highlight = bleve.NewHighlight()
	searchRequest.Highlight.AddField("title")
	searchRequest.Highlight.AddField("authors")

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  queryStr,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		h := Hit{
			CatalogID: id,
			Score:     hit.Score,
			Title:     fieldString(hit.Fields["title"]),
			Authors:   fieldStrings(hit.Fields["authors"]),
			Tags:      fieldStrings(hit.Fields["tags"]),
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildQuery interprets the query string. ISBN-shaped input becomes an
// exact term query on the isbns field; everything else is a boosted
// disjunction of match queries.
func buildQuery(queryStr string) query.Query {
	if isISBNShaped(queryStr) {
		tq := bleve.NewTermQuery(queryStr)
		tq.SetField("isbns")
		return tq
	}

	titleQuery := bleve.NewMatchQuery(queryStr)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)

	authorQuery := bleve.NewMatchQuery(queryStr)
	authorQuery.SetField("authors")
	authorQuery.SetBoost(1.5)

	tagQuery := bleve.NewMatchQuery(queryStr)
	tagQuery.SetField("tags")

	return bleve.NewDisjunctionQuery(titleQuery, authorQuery, tagQuery)
}

// isISBNShaped reports whether s looks like a bare ISBN-13.
func isISBNShaped(s string) bool {
	if len(s) != 13 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// fieldString extracts a stored string field from a bleve hit.
func fieldString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		if len(s) > 0 {
			if str, ok := s[0].(string); ok {
				return str
			}
		}
	}
	return ""
}

// fieldStrings extracts a stored multi-valued field from a bleve hit.
// Bleve returns a bare string when the field held a single value.
func fieldStrings(v any) []string {
	switch s := v.(type) {
	case string:
		return []string{s}
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
