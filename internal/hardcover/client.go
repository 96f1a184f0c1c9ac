// Package hardcover is a rate-limited client for the Hardcover GraphQL API.
package hardcover

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/bookscoutapp/bookscout-server/internal/normalize"
	"github.com/bookscoutapp/bookscout-server/internal/ratelimit"
)

const (
	// Rate limits per endpoint class. The API throttles hard; searches
	// are cheaper than list crawls.
	searchRPS   = 1.0
	searchBurst = 3
	listRPS     = 0.5
	listBurst   = 1

	// Limiter keys.
	keySearch = "search"
	keyLists  = "lists"

	defaultEndpoint = "https://api.hardcover.app/v1/graphql"
)

// Config holds client construction parameters.
type Config struct {
	Token         string
	Endpoint      string
	SearchTimeout time.Duration
	ListTimeout   time.Duration

	// SearchRPS and ListRPS override the built-in rate limits when
	// positive. Leave zero for the upstream's documented limits.
	SearchRPS   float64
	SearchBurst int
	ListRPS     float64
	ListBurst   int
}

// Client is a rate-limited Hardcover API client.
type Client struct {
	http          *http.Client
	endpoint      string
	token         string
	searchTimeout time.Duration
	listTimeout   time.Duration
	limiter       *ratelimit.KeyedRateLimiter
	logger        *slog.Logger
}

// New creates a new Hardcover client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = 8 * time.Second
	}
	if cfg.ListTimeout == 0 {
		cfg.ListTimeout = 30 * time.Second
	}
	if cfg.SearchRPS <= 0 {
		cfg.SearchRPS = searchRPS
		cfg.SearchBurst = searchBurst
	}
	if cfg.ListRPS <= 0 {
		cfg.ListRPS = listRPS
		cfg.ListBurst = listBurst
	}
	limiter := ratelimit.New(cfg.SearchRPS, cfg.SearchBurst)
	limiter.Configure(keyLists, cfg.ListRPS, cfg.ListBurst)
	return &Client{
		http:          &http.Client{},
		endpoint:      cfg.Endpoint,
		token:         cfg.Token,
		searchTimeout: cfg.SearchTimeout,
		listTimeout:   cfg.ListTimeout,
		limiter:       limiter,
		logger:        logger,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// SearchByTitle resolves a book by exact title match. Exact only: the
// upstream penalizes wildcard queries heavily. Returns ErrNotFound when
// no book matches.
func (c *Client) SearchByTitle(ctx context.Context, title string) (*Book, error) {
	data, err := c.do(ctx, keySearch, c.searchTimeout, searchByTitleQuery, map[string]any{"title": title})
	if err != nil {
		return nil, err
	}

	nodes := lookup(data, []string{"books"})
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return c.bookFromNode(nodes[0])
}

// SearchByISBN resolves a book by exact ISBN-13. Returns ErrNotFound
// when no edition matches.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (*Book, error) {
	data, err := c.do(ctx, keySearch, c.searchTimeout, searchByISBNQuery, map[string]any{"isbn": isbn})
	if err != nil {
		return nil, err
	}

	nodes := lookup(data, []string{"editions", "book"})
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return c.bookFromNode(nodes[0])
}

// ListsForBook returns up to limit public lists containing the book.
func (c *Client) ListsForBook(ctx context.Context, bookID string, limit int) ([]List, error) {
	idNum, err := strconv.Atoi(bookID)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric book id %q", ErrMalformed, bookID)
	}

	data, err := c.do(ctx, keyLists, c.listTimeout, listsForBookQuery, map[string]any{
		"bookId": idNum,
		"limit":  limit,
	})
	if err != nil {
		return nil, err
	}

	var lists []List
	for _, node := range lookup(data, []string{"lists"}) {
		m, ok := node.(map[string]any)
		if !ok {
			continue
		}
		l := List{
			ID:   stringify(m["id"]),
			Name: stringify(m["name"]),
			Slug: stringify(m["slug"]),
		}
		if n, ok := m["books_count"].(float64); ok {
			l.BooksCount = int(n)
		}
		if l.ID != "" {
			lists = append(lists, l)
		}
	}
	return lists, nil
}

// ListBooks returns up to limit books on a list, excluding any with a
// rating below minRating (0 disables the filter).
func (c *Client) ListBooks(ctx context.Context, listID string, limit int, minRating float64) ([]Book, error) {
	idNum, err := strconv.Atoi(listID)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric list id %q", ErrMalformed, listID)
	}

	data, err := c.do(ctx, keyLists, c.listTimeout, listBooksQuery, map[string]any{
		"listId": idNum,
		"limit":  limit,
	})
	if err != nil {
		return nil, err
	}

	var books []Book
	for _, node := range lookup(data, []string{"list_books", "book"}) {
		b, err := c.bookFromNode(node)
		if err != nil {
			continue
		}
		if minRating > 0 && b.Rating > 0 && b.Rating < minRating {
			continue
		}
		books = append(books, *b)
	}
	return books, nil
}

// ResolveWantListID finds the id of the user's want-to-read list. The
// schema for this has changed repeatedly, so an ordered set of query
// variants is probed until one returns data.
func (c *Client) ResolveWantListID(ctx context.Context, username string) (string, error) {
	vars := map[string]any{"username": username}

	var lastErr error
	for _, variant := range listIDVariants {
		v := vars
		if !strings.Contains(variant.query, "$username") {
			v = nil
		}
		data, err := c.do(ctx, keySearch, c.searchTimeout, variant.query, v)
		if err != nil {
			lastErr = err
			c.logger.Debug("want-list id probe failed", "variant", variant.name, "error", err)
			continue
		}
		for _, node := range lookup(data, variant.root) {
			if id := stringify(node); id != "" {
				return id, nil
			}
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNotFound
}

// WantList fetches up to limit books from the want-to-read list,
// probing query variants in order.
func (c *Client) WantList(ctx context.Context, listID string, limit int) ([]Book, error) {
	idNum, err := strconv.Atoi(listID)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric list id %q", ErrMalformed, listID)
	}
	vars := map[string]any{"listId": idNum, "limit": limit}

	var lastErr error
	for _, variant := range wantListVariants {
		v := vars
		if !strings.Contains(variant.query, "$listId") {
			v = map[string]any{"limit": limit}
		}
		data, err := c.do(ctx, keyLists, c.listTimeout, variant.query, v)
		if err != nil {
			lastErr = err
			c.logger.Debug("want-list probe failed", "variant", variant.name, "error", err)
			continue
		}
		nodes := lookup(data, variant.root)
		if len(nodes) == 0 {
			continue
		}
		var books []Book
		for _, node := range nodes {
			if b, err := c.bookFromNode(node); err == nil {
				books = append(books, *b)
			}
		}
		if len(books) > 0 {
			return books, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// bookFromNode builds a Book from a generic payload node using the
// extraction rules.
func (c *Client) bookFromNode(node any) (*Book, error) {
	m, ok := node.(map[string]any)
	if !ok {
		return nil, ErrMalformed
	}

	b := &Book{
		ID:       stringify(m["id"]),
		Title:    stringify(m["title"]),
		Slug:     stringify(m["slug"]),
		Authors:  ExtractStrings(m, authorRule),
		Genres:   ExtractStrings(m, genreRule),
		ISBNs:    normalize.ISBNSet(ExtractStrings(m, isbnRule)),
		Rating:   ExtractFloat(m, ratingRule),
		CoverURL: ExtractString(m, coverRule),
	}
	if b.Title == "" {
		return nil, ErrMalformed
	}

	// Descriptions arrive as HTML fragments; store markdown.
	if desc := ExtractString(m, descriptionRule); desc != "" {
		if md, err := htmltomarkdown.ConvertString(desc); err == nil {
			b.Description = md
		} else {
			b.Description = desc
		}
	}

	return b, nil
}

// graphqlRequest is the request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the response envelope. Data stays generic; the
// extraction layer interprets it.
type graphqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do executes one GraphQL request with rate limiting and a bounded
// timeout, returning the decoded data object.
func (c *Client) do(ctx context.Context, key string, timeout time.Duration, query string, vars map[string]any) (map[string]any, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx, key); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "Bookscout/1.0")

	c.logger.Debug("hardcover request", "key", key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: token rejected (check HARDCOVER_TOKEN)", ErrNotConfigured)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var gr graphqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(gr.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, gr.Errors[0].Message)
	}
	if gr.Data == nil {
		return nil, ErrMalformed
	}

	return gr.Data, nil
}
