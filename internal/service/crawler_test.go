package service

import (
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/crawlcache"
	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/hardcover"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bookscout.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestCache(t *testing.T) *crawlcache.Cache {
	t.Helper()
	c, err := crawlcache.Open(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newTestHardcover(t *testing.T, handler http.Handler) *hardcover.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := hardcover.New(hardcover.Config{
		Token:         "test-token",
		Endpoint:      srv.URL,
		SearchTimeout: 2 * time.Second,
		ListTimeout:   2 * time.Second,
		// Tests issue bursts of requests; do not throttle them.
		SearchRPS:   1000,
		SearchBurst: 1000,
		ListRPS:     1000,
		ListBurst:   1000,
	}, testLogger())
	t.Cleanup(c.Close)
	return c
}

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		ListsPerBook:      3,
		ItemsPerList:      10,
		InterEntryDelay:   time.Millisecond,
		RateLimitCooldown: 20 * time.Millisecond,
	}
}

// gqlRequest mirrors the GraphQL request body shape for test routing.
type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func decodeGQL(t *testing.T, r *http.Request) gqlRequest {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var req gqlRequest
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func respondData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"data":`+data+`}`)
}

// readBody drains and restores the request body so a handler can peek
// at it before delegating.
func readBody(t *testing.T, r *http.Request) string {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	return string(body)
}

// hardcoverFixture is a canned Hardcover backend:
//
//	"Dune"     -> book 101, list 7 "Best SF" containing Children of Dune + Foundation
//	"Hyperion" -> book 102, list 8 "Space Opera" containing Children of Dune
//
// Unknown titles and ISBNs return empty result sets.
func hardcoverFixture(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := decodeGQL(t, r)
		switch {
		case strings.Contains(req.Query, "BookByTitle"):
			switch req.Variables["title"] {
			case "Dune":
				respondData(w, `{"books": [{
					"id": 101, "title": "Dune", "slug": "dune",
					"contributions": [{"author": {"name": "Frank Herbert"}}],
					"cached_tags": {"Genre": [{"tag": "Science Fiction"}]},
					"editions": [{"isbn_13": "9780441013593"}]
				}]}`)
			case "Hyperion":
				respondData(w, `{"books": [{
					"id": 102, "title": "Hyperion", "slug": "hyperion",
					"contributions": [{"author": {"name": "Dan Simmons"}}],
					"cached_tags": {"Genre": [{"tag": "Space Opera"}]}
				}]}`)
			default:
				respondData(w, `{"books": []}`)
			}
		case strings.Contains(req.Query, "BookByISBN"):
			respondData(w, `{"editions": []}`)
		case strings.Contains(req.Query, "ListsForBook"):
			switch req.Variables["bookId"] {
			case float64(101):
				respondData(w, `{"lists": [{"id": 7, "name": "Best SF", "slug": "best-sf", "books_count": 120}]}`)
			case float64(102):
				respondData(w, `{"lists": [{"id": 8, "name": "Space Opera", "slug": "space-opera", "books_count": 40}]}`)
			default:
				respondData(w, `{"lists": []}`)
			}
		case strings.Contains(req.Query, "query ListBooks"):
			switch req.Variables["listId"] {
			case float64(7):
				respondData(w, `{"list_books": [
					{"book": {"id": 201, "title": "Children of Dune", "slug": "children-of-dune",
						"contributions": [{"author": {"name": "Frank Herbert"}}],
						"cached_tags": {"Genre": [{"tag": "Science Fiction"}]}}},
					{"book": {"id": 202, "title": "Foundation", "slug": "foundation",
						"contributions": [{"author": {"name": "Isaac Asimov"}}]}}
				]}`)
			case float64(8):
				respondData(w, `{"list_books": [
					{"book": {"id": 201, "title": "Children of Dune", "slug": "children-of-dune",
						"contributions": [{"author": {"name": "Frank Herbert"}}],
						"cached_tags": {"Genre": [{"tag": "Science Fiction"}]}}}
				]}`)
			default:
				respondData(w, `{"list_books": []}`)
			}
		default:
			t.Errorf("unexpected query: %s", req.Query)
			respondData(w, `{}`)
		}
	}
}

func newTestCrawler(t *testing.T, handler http.Handler) *CrawlerService {
	t.Helper()
	return NewCrawlerService(newTestHardcover(t, handler), newTestCache(t), testCrawlConfig(), testLogger())
}

func duneEntry() domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:      1,
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		ISBNs:   []string{"9780441013593"},
		Tags:    []string{"Science Fiction"},
	}
}

func TestCrawlEntryLiveThenCached(t *testing.T) {
	var requests atomic.Int64
	fixture := hardcoverFixture(t)
	crawler := newTestCrawler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fixture(w, r)
	}))
	ctx := context.Background()

	result, fromCache, err := crawler.CrawlEntry(ctx, duneEntry(), CrawlOptions{})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, domain.CrawlStatusOK, result.Status)
	assert.Equal(t, "101", result.BookID)
	assert.Equal(t, 1, result.ListCount)
	assert.Equal(t, 2, result.RecCount)
	assert.Equal(t, []string{"Science Fiction"}, result.BaseGenres)
	assert.Equal(t, "Best SF", result.Recommendations[0].SourceList)

	liveRequests := requests.Load()

	cached, fromCache, err := crawler.CrawlEntry(ctx, duneEntry(), CrawlOptions{})
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, result.BookID, cached.BookID)
	assert.Equal(t, result.RecCount, cached.RecCount)
	assert.Equal(t, liveRequests, requests.Load(), "cache hit must not reach upstream")

	// Force bypasses the cache.
	_, fromCache, err = crawler.CrawlEntry(ctx, duneEntry(), CrawlOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Greater(t, requests.Load(), liveRequests)
}

func TestCrawlEntrySkipsSelfReference(t *testing.T) {
	crawler := newTestCrawler(t, hardcoverFixture(t))

	// List 7 does not contain Dune itself, but guard against fixtures
	// evolving: no recommendation may reference the resolved book.
	result, _, err := crawler.CrawlEntry(context.Background(), duneEntry(), CrawlOptions{})
	require.NoError(t, err)
	for _, rec := range result.Recommendations {
		assert.NotEqual(t, result.BookID, rec.BookID)
	}
}

func TestCrawlEntryNotMatched(t *testing.T) {
	crawler := newTestCrawler(t, hardcoverFixture(t))
	ctx := context.Background()

	entry := domain.CatalogEntry{ID: 9, Title: "Obscure Self-Published Work", ISBNs: []string{"9799999999991"}}
	result, fromCache, err := crawler.CrawlEntry(ctx, entry, CrawlOptions{})
	require.NoError(t, err, "a miss is an outcome, not an error")
	assert.False(t, fromCache)
	assert.Equal(t, domain.CrawlStatusNotMatched, result.Status)

	// The miss is cached like any other definitive outcome.
	_, fromCache, err = crawler.CrawlEntry(ctx, entry, CrawlOptions{})
	require.NoError(t, err)
	assert.True(t, fromCache)
}

func TestCrawlEntryRateLimitRetrySucceeds(t *testing.T) {
	var searches atomic.Int64
	fixture := hardcoverFixture(t)
	crawler := newTestCrawler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := readBody(t, r)
		if strings.Contains(body, "BookByTitle") && searches.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fixture(w, r)
	}))

	result, _, err := crawler.CrawlEntry(context.Background(), duneEntry(), CrawlOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.CrawlStatusOK, result.Status)
	assert.Equal(t, int64(2), searches.Load(), "exactly one retry after cooldown")
}

func TestCrawlEntryRateLimitPersistsAsFailure(t *testing.T) {
	var requests atomic.Int64
	crawler := newTestCrawler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	ctx := context.Background()

	_, _, err := crawler.CrawlEntry(ctx, duneEntry(), CrawlOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, hardcover.ErrRateLimited)
	assert.Equal(t, int64(2), requests.Load(), "one retry, then give up")

	// The failure must not poison the cache with a definitive status.
	stats, err := crawler.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestCrawlEntryNotMatchedPreservesPriorMatch(t *testing.T) {
	cache := newTestCache(t)
	client := newTestHardcover(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeGQL(t, r)
		if strings.Contains(req.Query, "BookByTitle") {
			respondData(w, `{"books": []}`)
			return
		}
		respondData(w, `{"editions": []}`)
	}))
	crawler := NewCrawlerService(client, cache, testCrawlConfig(), testLogger())
	ctx := context.Background()

	prior := &domain.CrawlCacheEntry{
		CatalogID:   1,
		BookID:      "101",
		BookTitle:   "Dune",
		Status:      domain.CrawlStatusOK,
		LastChecked: time.Now().UTC().Add(-time.Hour),
		Recommendations: []domain.Recommendation{
			{BookID: "201", Title: "Children of Dune"},
		},
	}
	require.NoError(t, cache.Record(ctx, prior))

	// A forced re-crawl now misses upstream; the old match must survive.
	result, fromCache, err := crawler.CrawlEntry(ctx, duneEntry(), CrawlOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, domain.CrawlStatusOK, result.Status)
	assert.Equal(t, "101", result.BookID)
	assert.Len(t, result.Recommendations, 1)
	assert.True(t, result.LastChecked.After(prior.LastChecked))
}

func TestResetCache(t *testing.T) {
	crawler := newTestCrawler(t, hardcoverFixture(t))
	ctx := context.Background()

	_, _, err := crawler.CrawlEntry(ctx, duneEntry(), CrawlOptions{})
	require.NoError(t, err)

	stats, err := crawler.CacheStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)

	require.NoError(t, crawler.ResetCache(ctx))
	stats, err = crawler.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}
