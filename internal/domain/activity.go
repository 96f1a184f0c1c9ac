package domain

import "time"

// ActivityLevel classifies an activity-log entry.
type ActivityLevel string

const (
	// ActivitySuccess records a completed unit of work.
	ActivitySuccess ActivityLevel = "success"
	// ActivityWarning records a degraded but non-fatal outcome.
	ActivityWarning ActivityLevel = "warning"
	// ActivityError records a failed unit of work.
	ActivityError ActivityLevel = "error"
)

// ActivityEntry is one row in the shared activity log. The log is
// fire-and-forget: a failure to record never aborts the work that
// produced it.
type ActivityEntry struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Level     ActivityLevel  `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// WantListEntry is one book on the external want-to-read list.
type WantListEntry struct {
	BookID  string    `json:"book_id"`
	Title   string    `json:"title"`
	Slug    string    `json:"slug,omitempty"`
	ISBNs   []string  `json:"isbns,omitempty"`
	AddedAt time.Time `json:"added_at,omitempty"`
}
