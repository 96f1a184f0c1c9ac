package service

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/sse"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

func newTestAggregator(t *testing.T, st *store.Store, handler http.Handler) *AggregatorService {
	t.Helper()
	crawler := newTestCrawler(t, handler)
	suggested := NewSuggestedService(st, testLogger())
	activity := NewActivityService(st, nil, testLogger())
	return NewAggregatorService(crawler, suggested, st, activity, nil, testCrawlConfig(), testLogger())
}

func seedMirror(t *testing.T, st *store.Store, entries ...domain.CatalogEntry) {
	t.Helper()
	_, err := st.ReplaceMirror(context.Background(), entries, "/library/metadata.db")
	require.NoError(t, err)
}

func TestRunAggregatesAcrossEntries(t *testing.T) {
	st := newTestStore(t)
	seedMirror(t, st,
		duneEntry(),
		domain.CatalogEntry{ID: 2, Title: "Hyperion", Authors: []string{"Dan Simmons"}},
	)
	agg := newTestAggregator(t, st, hardcoverFixture(t))
	ctx := context.Background()

	result, err := agg.Run(ctx, CrawlRunOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inspected)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 0, result.NotMatched)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Canceled)
	require.Len(t, result.Candidates, 2)

	// Children of Dune appears on both lists, so it outranks Foundation.
	children := result.Candidates[0]
	assert.Equal(t, "Children of Dune", children.Title)
	assert.Equal(t, 2, children.Occurrences)
	assert.Equal(t, []string{
		`found in list "Best SF" via "Dune"`,
		`found in list "Space Opera" via "Hyperion"`,
	}, children.Reasons)
	assert.Equal(t, []string{"Science Fiction"}, children.BaseGenres)

	foundation := result.Candidates[1]
	assert.Equal(t, "Foundation", foundation.Title)
	assert.Equal(t, 1, foundation.Occurrences)
	assert.Equal(t, []string{`found in list "Best SF" via "Dune"`}, foundation.Reasons)

	// Both candidates were stored durably.
	assert.Equal(t, 2, result.NewSuggestions)
	stored, err := st.GetVisibleSuggested(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRunSecondPassAddsNothing(t *testing.T) {
	st := newTestStore(t)
	seedMirror(t, st,
		duneEntry(),
		domain.CatalogEntry{ID: 2, Title: "Hyperion"},
	)
	agg := newTestAggregator(t, st, hardcoverFixture(t))
	ctx := context.Background()

	first, err := agg.Run(ctx, CrawlRunOptions{}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, first.NewSuggestions)

	// Second run is served from cache and rediscovers the same books.
	second, err := agg.Run(ctx, CrawlRunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, second.FromCache)
	assert.Equal(t, 0, second.NewSuggestions, "rediscovered suggestions must not duplicate")

	stored, err := st.GetVisibleSuggested(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRunIsolatesPerEntryFailures(t *testing.T) {
	st := newTestStore(t)
	seedMirror(t, st,
		domain.CatalogEntry{ID: 1, Title: "Throttled Book"},
		domain.CatalogEntry{ID: 2, Title: "Dune", ISBNs: []string{"9780441013593"}},
	)

	var throttledSearches atomic.Int64
	fixture := hardcoverFixture(t)
	agg := newTestAggregator(t, st, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := readBody(t, r)
		if strings.Contains(body, "Throttled Book") {
			throttledSearches.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fixture(w, r)
	}))

	result, err := agg.Run(context.Background(), CrawlRunOptions{}, nil)
	require.NoError(t, err, "per-entry failures never abort the batch")

	assert.Equal(t, 2, result.Inspected)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, int64(2), throttledSearches.Load(), "failed entry got its single retry")

	require.Len(t, result.Steps, 2)
	assert.NotEmpty(t, result.Steps[0].Error)
	assert.Equal(t, domain.CrawlStatusOK, result.Steps[1].Status)
}

func TestRunCancellationKeepsPartialResults(t *testing.T) {
	st := newTestStore(t)
	seedMirror(t, st,
		duneEntry(),
		domain.CatalogEntry{ID: 2, Title: "Hyperion"},
		domain.CatalogEntry{ID: 3, Title: "Foundation"},
	)
	agg := newTestAggregator(t, st, hardcoverFixture(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := agg.Run(ctx, CrawlRunOptions{}, func(ev sse.Event) {
		if ev.Type == sse.EventCrawlEntry {
			cancel()
		}
	})
	require.NoError(t, err, "cancellation is an outcome, not an error")

	assert.True(t, result.Canceled)
	assert.Equal(t, 1, result.Inspected)

	// The committed crawl survives and serves the next run from cache.
	cached, err := agg.crawler.cache.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, domain.CrawlStatusOK, cached.Status)
}

func TestRunLimit(t *testing.T) {
	st := newTestStore(t)
	seedMirror(t, st,
		duneEntry(),
		domain.CatalogEntry{ID: 2, Title: "Hyperion"},
	)
	agg := newTestAggregator(t, st, hardcoverFixture(t))

	result, err := agg.Run(context.Background(), CrawlRunOptions{Limit: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inspected)
}

func TestRunEmptyMirror(t *testing.T) {
	st := newTestStore(t)
	agg := newTestAggregator(t, st, hardcoverFixture(t))

	_, err := agg.Run(context.Background(), CrawlRunOptions{}, nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRunEmitsEventsInOrder(t *testing.T) {
	st := newTestStore(t)
	seedMirror(t, st, duneEntry())
	agg := newTestAggregator(t, st, hardcoverFixture(t))

	var types []sse.EventType
	_, err := agg.Run(context.Background(), CrawlRunOptions{}, func(ev sse.Event) {
		types = append(types, ev.Type)
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(types), 4)
	assert.Equal(t, sse.EventCrawlStarted, types[0])
	assert.Equal(t, sse.EventCrawlEntry, types[1])
	assert.Equal(t, sse.EventCrawlFinished, types[len(types)-1])
	assert.Contains(t, types, sse.EventCrawlSuggestion)
}
