package hardcover

import (
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		Token:         "test-token",
		Endpoint:      srv.URL,
		SearchTimeout: 2 * time.Second,
		ListTimeout:   2 * time.Second,
	}, testLogger())
	// Tests issue bursts of requests; do not throttle them.
	c.limiter.Configure(keySearch, 1000, 1000)
	c.limiter.Configure(keyLists, 1000, 1000)
	t.Cleanup(c.Close)
	return c
}

func respond(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"data":`+data+`}`)
}

func TestSearchByTitle(t *testing.T) {
	var gotAuth, gotQuery string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req graphqlRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		gotQuery = req.Query
		assert.Equal(t, "Dune", req.Variables["title"])

		respond(w, `{"books": [{
			"id": 382191,
			"title": "Dune",
			"slug": "dune",
			"rating": 4.3,
			"contributions": [{"author": {"name": "Frank Herbert"}}],
			"cached_tags": {"Genre": [{"tag": "Science Fiction"}]},
			"editions": [{"isbn_13": "9780441013593", "isbn_10": null}]
		}]}`)
	})

	book, err := c.SearchByTitle(context.Background(), "Dune")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Contains(t, gotQuery, "books(")
	assert.Equal(t, "382191", book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, []string{"Frank Herbert"}, book.Authors)
	assert.Equal(t, []string{"Science Fiction"}, book.Genres)
	assert.Equal(t, []string{"9780441013593"}, book.ISBNs)
	assert.Equal(t, 4.3, book.Rating)
}

func TestSearchByTitleNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"books": []}`)
	})

	_, err := c.SearchByTitle(context.Background(), "No Such Book")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchByISBNNormalizesISBN10(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"editions": [{"book": {
			"id": 1,
			"title": "Neuromancer",
			"editions": [{"isbn_10": "0441013597"}]
		}}]}`)
	})

	book, err := c.SearchByISBN(context.Background(), "9780441013593")
	require.NoError(t, err)
	assert.Equal(t, []string{"9780441013593"}, book.ISBNs)
}

func TestListsForBook(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, float64(42), req.Variables["bookId"])

		respond(w, `{"lists": [
			{"id": 7, "name": "Best SF", "slug": "best-sf", "books_count": 120},
			{"id": 8, "name": "Desert Worlds", "slug": "desert-worlds", "books_count": 15}
		]}`)
	})

	lists, err := c.ListsForBook(context.Background(), "42", 3)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "7", lists[0].ID)
	assert.Equal(t, "Best SF", lists[0].Name)
	assert.Equal(t, 120, lists[0].BooksCount)
}

func TestListsForBookNonNumericID(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.ListsForBook(context.Background(), "dune", 3)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestListBooksMinRatingFilter(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"list_books": [
			{"book": {"id": 1, "title": "Good Book", "rating": 4.2}},
			{"book": {"id": 2, "title": "Weak Book", "rating": 2.1}},
			{"book": {"id": 3, "title": "Unrated Book"}}
		]}`)
	})

	books, err := c.ListBooks(context.Background(), "7", 10, 3.5)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Good Book", books[0].Title)
	// Books with no rating are kept; the filter only drops known-bad ones.
	assert.Equal(t, "Unrated Book", books[1].Title)
}

func TestResolveWantListIDProbesVariants(t *testing.T) {
	var queries []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		queries = append(queries, req.Query)

		// First variant shape returns nothing; second succeeds.
		if strings.Contains(req.Query, "UserLists") {
			respond(w, `{"users": []}`)
			return
		}
		respond(w, `{"lists": [{"id": 991}]}`)
	})

	id, err := c.ResolveWantListID(context.Background(), "reader1")
	require.NoError(t, err)
	assert.Equal(t, "991", id)
	assert.Len(t, queries, 2)
}

func TestResolveWantListIDAllEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{}`)
	})

	_, err := c.ResolveWantListID(context.Background(), "reader1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWantListFallsBackToUserBooks(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))

		if strings.Contains(req.Query, "WantListBooks") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		respond(w, `{"user_books": [{"book": {"id": 5, "title": "Hyperion"}}]}`)
	})

	books, err := c.WantList(context.Background(), "991", 50)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Hyperion", books[0].Title)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, ErrNotConfigured},
		{"forbidden", http.StatusForbidden, ErrNotConfigured},
		{"server error", http.StatusBadGateway, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.SearchByTitle(context.Background(), "Dune")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGraphQLErrorsMapToUpstream(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors": [{"message": "field 'books' not found"}]}`)
	})

	_, err := c.SearchByTitle(context.Background(), "Dune")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "field 'books' not found")
}

func TestMissingTokenShortCircuits(t *testing.T) {
	c := New(Config{Endpoint: "http://unused.invalid"}, testLogger())
	t.Cleanup(c.Close)

	_, err := c.SearchByTitle(context.Background(), "Dune")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
