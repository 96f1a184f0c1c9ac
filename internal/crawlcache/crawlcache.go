// Package crawlcache persists per-catalog-entry crawl results in Badger.
//
// The cache is the system's memory of what the list crawler has already
// learned: which external book each catalog entry resolved to, which
// lists were found, and the harvested recommendations. Entries have no
// expiry; staleness is surfaced to callers via LastChecked instead of
// silently dropping data.
package crawlcache

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

const entryPrefix = "crawl:entry:"

// Cache wraps a Badger database holding crawl results.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the cache at path.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil      // Disable Badger's internal logging
	opts.SyncWrites = true // Crawl results are expensive to recreate
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open crawl cache: %w", err)
	}

	if logger != nil {
		logger.Info("crawl cache opened", "path", path)
	}

	return &Cache{db: db, logger: logger}, nil
}

// Close gracefully closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

func entryKey(catalogID int64) []byte {
	return fmt.Appendf(nil, "%s%d", entryPrefix, catalogID)
}

// Get retrieves the cached entry for a catalog id.
// Returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, catalogID int64) (*domain.CrawlCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry domain.CrawlCacheEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(catalogID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crawl entry %d: %w", catalogID, err)
	}

	return &entry, nil
}

// Record stores a definitive crawl outcome (ok or not_matched).
// Preserve-on-failure: a not_matched result never overwrites a prior ok
// row with a resolved id; the prior row just gets its LastChecked
// bumped. Callers must not record transient failures here; use Touch
// for those so earlier results survive.
func (c *Cache) Record(ctx context.Context, entry *domain.CrawlCacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.Status != domain.CrawlStatusOK && entry.Status != domain.CrawlStatusNotMatched {
		return fmt.Errorf("refusing to record non-definitive status %q for catalog %d", entry.Status, entry.CatalogID)
	}

	if entry.Status == domain.CrawlStatusNotMatched {
		prior, err := c.Get(ctx, entry.CatalogID)
		if err != nil {
			return err
		}
		if prior.Matched() {
			if c.logger != nil {
				c.logger.Debug("preserving prior crawl result over not_matched",
					"catalog_id", entry.CatalogID, "book_id", prior.BookID)
			}
			at := entry.LastChecked
			if at.IsZero() {
				at = time.Now().UTC()
			}
			return c.Touch(ctx, entry.CatalogID, at)
		}
	}
	if entry.LastChecked.IsZero() {
		entry.LastChecked = time.Now().UTC()
	}
	entry.ListCount = len(entry.ListHits)
	entry.RecCount = len(entry.Recommendations)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal crawl entry: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.CatalogID), data)
	})
}

// Touch bumps LastChecked on an existing entry without changing its
// payload. Used after a failed re-crawl so previous results survive.
// A miss is a no-op.
func (c *Cache) Touch(ctx context.Context, catalogID int64, at time.Time) error {
	entry, err := c.Get(ctx, catalogID)
	if err != nil || entry == nil {
		return err
	}

	entry.LastChecked = at
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal crawl entry: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(catalogID), data)
	})
}

// Delete removes the entry for a catalog id. Idempotent.
func (c *Cache) Delete(ctx context.Context, catalogID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(entryKey(catalogID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// All streams every cached entry to fn in key order. fn returning an
// error stops the iteration.
func (c *Cache) All(ctx context.Context, fn func(*domain.CrawlCacheEntry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry domain.CrawlCacheEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decode crawl entry: %w", err)
			}
			if err := fn(&entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats summarizes the cache by crawl status.
func (c *Cache) Stats(ctx context.Context) (domain.CrawlCacheStats, error) {
	var stats domain.CrawlCacheStats
	err := c.All(ctx, func(entry *domain.CrawlCacheEntry) error {
		stats.Total++
		switch entry.Status {
		case domain.CrawlStatusNotMatched:
			stats.NotMatched++
		case domain.CrawlStatusPending:
			stats.Pending++
		case domain.CrawlStatusOK:
			if entry.ListCount > 0 {
				stats.WithLists++
			}
		}
		return nil
	})
	return stats, err
}

// Reset drops every cached entry.
func (c *Cache) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.logger != nil {
		c.logger.Warn("resetting crawl cache")
	}
	return c.db.DropPrefix([]byte(entryPrefix))
}
