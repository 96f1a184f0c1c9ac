package hardcover

import "errors"

// Client errors. Callers translate these into domain error codes; the
// distinction between rate limiting and generic upstream failure matters
// because the crawler backs off on 429 but not on 5xx.
var (
	// ErrNotConfigured means no API token is set.
	ErrNotConfigured = errors.New("hardcover: API token not configured (set HARDCOVER_TOKEN)")
	// ErrNotFound means the query succeeded but matched nothing.
	ErrNotFound = errors.New("hardcover: not found")
	// ErrRateLimited is an HTTP 429 from the API.
	ErrRateLimited = errors.New("hardcover: rate limited")
	// ErrUpstream is a non-2xx response or a GraphQL-level error.
	ErrUpstream = errors.New("hardcover: upstream error")
	// ErrMalformed is a 2xx response whose payload cannot be interpreted.
	ErrMalformed = errors.New("hardcover: malformed response")
)
