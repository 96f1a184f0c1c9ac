// Package sse implements Server-Sent Events for crawl progress streaming
// and server-to-client change notifications.
package sse

import (
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

// EventType represents the type of SSE event.
type EventType string

const (
	// EventMirrorSynced fires after a catalog mirror sync completes.
	EventMirrorSynced EventType = "mirror.synced"

	// EventCrawlStarted fires when a crawl run begins.
	EventCrawlStarted EventType = "crawl.started"
	// EventCrawlEntry fires after each catalog entry finishes crawling.
	EventCrawlEntry EventType = "crawl.entry"
	// EventCrawlSuggestion fires when a crawl stores a new suggestion.
	EventCrawlSuggestion EventType = "crawl.suggestion"
	// EventCrawlFinished fires when a crawl run completes or is canceled.
	EventCrawlFinished EventType = "crawl.finished"

	// EventActivity fires for every recorded activity-log entry.
	EventActivity EventType = "activity.recorded"

	// EventHeartbeat is a connection keepalive.
	EventHeartbeat EventType = "heartbeat"
)

// Event is an SSE event sent to clients. Data holds the event payload
// as a JSON-marshalable object.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// MirrorSyncedData is the payload for mirror sync events.
type MirrorSyncedData struct {
	SyncedAt time.Time `json:"synced_at"`
	Count    int       `json:"count"`
	Added    int       `json:"added"`
	Removed  int       `json:"removed"`
}

// CrawlStartedData is the payload for crawl start events.
type CrawlStartedData struct {
	RunID   string `json:"run_id"`
	Entries int    `json:"entries"`
}

// CrawlEntryData is the payload for per-entry crawl progress events.
type CrawlEntryData struct {
	RunID     string             `json:"run_id"`
	CatalogID int64              `json:"catalog_id"`
	Title     string             `json:"title"`
	Status    domain.CrawlStatus `json:"status"`
	FromCache bool               `json:"from_cache"`
	Lists     int                `json:"lists"`
	Recs      int                `json:"recs"`
	Error     string             `json:"error,omitempty"`
	Position  int                `json:"position"`
	Total     int                `json:"total"`
}

// CrawlSuggestionData is the payload for new-suggestion events.
type CrawlSuggestionData struct {
	RunID      string   `json:"run_id"`
	Suggestion string   `json:"suggestion_id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
}

// CrawlFinishedData is the payload for crawl completion events.
type CrawlFinishedData struct {
	RunID          string        `json:"run_id"`
	Crawled        int           `json:"crawled"`
	FromCache      int           `json:"from_cache"`
	NotMatched     int           `json:"not_matched"`
	Failed         int           `json:"failed"`
	NewSuggestions int           `json:"new_suggestions"`
	Canceled       bool          `json:"canceled"`
	Took           time.Duration `json:"took_ms"`
}

// NewEvent builds an event with the current timestamp.
func NewEvent(eventType EventType, data any) Event {
	return Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Data:      data,
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return NewEvent(EventHeartbeat, map[string]time.Time{"server_time": time.Now()})
}

// NewActivityEvent wraps an activity-log entry.
func NewActivityEvent(entry *domain.ActivityEntry) Event {
	return NewEvent(EventActivity, entry)
}
