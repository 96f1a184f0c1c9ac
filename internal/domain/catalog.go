// Package domain contains the core types shared across the Bookscout server.
package domain

import "time"

// CatalogEntry is one book in the mirrored Calibre catalog.
// Entries are created wholesale on each mirror sync and are immutable
// between syncs; the mirror owns them exclusively.
type CatalogEntry struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	ISBNs     []string `json:"isbns"` // normalized to ISBN-13
	Tags      []string `json:"tags"`
	CoverPath string   `json:"cover_path,omitempty"`
	Path      string   `json:"path,omitempty"` // library-relative
}

// SyncState records the outcome of the most recent mirror sync.
// Single row, last-writer-wins, written only by the mirror service.
type SyncState struct {
	LastSyncAt time.Time `json:"last_sync_at"`
	SourcePath string    `json:"source_path"`
	EntryCount int       `json:"entry_count"`
}

// SyncResult is returned by a mirror sync call.
type SyncResult struct {
	Count      int       `json:"count"`
	AddedIDs   []int64   `json:"added_ids"`
	RemovedIDs []int64   `json:"removed_ids"`
	SyncedAt   time.Time `json:"synced_at"`
}
