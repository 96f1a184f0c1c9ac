package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/crawlcache"
	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/hardcover"
)

// CrawlOptions bounds one crawl. Zero values fall back to the
// configured defaults.
type CrawlOptions struct {
	ListsPerBook int
	ItemsPerList int
	MinRating    float64
	// Force bypasses the crawl cache and re-crawls live.
	Force bool
}

// CrawlerService resolves catalog entries against the external list
// service and harvests co-listed books.
type CrawlerService struct {
	client *hardcover.Client
	cache  *crawlcache.Cache
	cfg    config.CrawlConfig
	logger *slog.Logger
}

// NewCrawlerService creates a new crawler service.
func NewCrawlerService(client *hardcover.Client, cache *crawlcache.Cache, cfg config.CrawlConfig, logger *slog.Logger) *CrawlerService {
	return &CrawlerService{
		client: client,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *CrawlerService) fillDefaults(opts CrawlOptions) CrawlOptions {
	if opts.ListsPerBook <= 0 {
		opts.ListsPerBook = s.cfg.ListsPerBook
	}
	if opts.ItemsPerList <= 0 {
		opts.ItemsPerList = s.cfg.ItemsPerList
	}
	if opts.MinRating <= 0 {
		opts.MinRating = s.cfg.MinRating
	}
	return opts
}

// CrawlEntry returns the crawl result for one catalog entry, consulting
// the cache first. A 429 from the upstream is retried once after the
// configured cooldown; a second 429 or any other upstream failure is
// returned as a per-entry error with the cache left intact (Touch only).
func (s *CrawlerService) CrawlEntry(ctx context.Context, entry domain.CatalogEntry, opts CrawlOptions) (result *domain.CrawlCacheEntry, fromCache bool, err error) {
	opts = s.fillDefaults(opts)

	if !opts.Force {
		cached, err := s.cache.Get(ctx, entry.ID)
		if err != nil {
			return nil, false, errors.Wrap(errors.CodeStorage, "read crawl cache", err)
		}
		if cached != nil && cached.Status != domain.CrawlStatusPending {
			return cached, true, nil
		}
	}

	result, err = s.ResolveAndCrawl(ctx, entry, opts)
	if err != nil && errors.Is(err, hardcover.ErrRateLimited) {
		s.logger.Warn("rate limited, cooling down before retry",
			"catalog_id", entry.ID,
			"cooldown", s.cfg.RateLimitCooldown,
		)
		if err := sleepCtx(ctx, s.cfg.RateLimitCooldown); err != nil {
			return nil, false, err
		}
		result, err = s.ResolveAndCrawl(ctx, entry, opts)
	}
	if err != nil {
		// Transient failure: bump last_checked so staleness is visible,
		// never clobber prior results.
		if touchErr := s.cache.Touch(ctx, entry.ID, time.Now().UTC()); touchErr != nil {
			s.logger.Warn("touch crawl cache failed", "catalog_id", entry.ID, "error", touchErr)
		}
		return nil, false, err
	}

	if err := s.cache.Record(ctx, result); err != nil {
		return nil, false, errors.Wrap(errors.CodeStorage, "record crawl result", err)
	}

	// Re-read so a not_matched outcome reflects a preserved prior row.
	if result.Status == domain.CrawlStatusNotMatched {
		stored, err := s.cache.Get(ctx, entry.ID)
		if err == nil && stored != nil {
			return stored, false, nil
		}
	}
	return result, false, nil
}

// ResolveAndCrawl performs one live crawl: resolve the entry to an
// external book (exact title first, ISBN fallback), then harvest
// co-listed books from up to ListsPerBook public lists. A failed
// resolution is an expected not_matched outcome, not an error.
func (s *CrawlerService) ResolveAndCrawl(ctx context.Context, entry domain.CatalogEntry, opts CrawlOptions) (*domain.CrawlCacheEntry, error) {
	opts = s.fillDefaults(opts)
	now := time.Now().UTC()

	book, err := s.resolve(ctx, entry)
	if err != nil {
		if errors.Is(err, hardcover.ErrNotFound) {
			s.logger.Debug("catalog entry not matched upstream",
				"catalog_id", entry.ID, "title", entry.Title)
			return &domain.CrawlCacheEntry{
				CatalogID:   entry.ID,
				Status:      domain.CrawlStatusNotMatched,
				LastChecked: now,
			}, nil
		}
		return nil, err
	}

	result := &domain.CrawlCacheEntry{
		CatalogID:   entry.ID,
		BookID:      book.ID,
		BookTitle:   book.Title,
		Status:      domain.CrawlStatusOK,
		LastChecked: now,
		BaseGenres:  book.Genres,
	}

	lists, err := s.client.ListsForBook(ctx, book.ID, opts.ListsPerBook)
	if err != nil {
		return nil, err
	}

	for _, list := range lists {
		result.ListHits = append(result.ListHits, domain.ListHit{
			ID:         list.ID,
			Name:       list.Name,
			Slug:       list.Slug,
			BooksCount: list.BooksCount,
		})

		books, err := s.client.ListBooks(ctx, list.ID, opts.ItemsPerList, opts.MinRating)
		if err != nil {
			// One bad list is a partial result, not a failed entry,
			// unless the upstream is throttling us.
			if errors.Is(err, hardcover.ErrRateLimited) {
				return nil, err
			}
			s.logger.Warn("list fetch failed",
				"catalog_id", entry.ID, "list_id", list.ID, "error", err)
			continue
		}

		for _, co := range books {
			if co.ID == book.ID {
				continue
			}
			result.Recommendations = append(result.Recommendations, domain.Recommendation{
				BookID:      co.ID,
				Title:       co.Title,
				Slug:        co.Slug,
				Authors:     co.Authors,
				Genres:      co.Genres,
				ISBNs:       co.ISBNs,
				Rating:      co.Rating,
				CoverURL:    co.CoverURL,
				Description: co.Description,
				SourceList:  list.Name,
			})
		}
	}

	result.ListCount = len(result.ListHits)
	result.RecCount = len(result.Recommendations)

	s.logger.Info("catalog entry crawled",
		"catalog_id", entry.ID,
		"book_id", book.ID,
		"lists", result.ListCount,
		"recommendations", result.RecCount,
	)
	return result, nil
}

// resolve finds the external book identity for a catalog entry. Exact
// title match first; the upstream penalizes wildcard queries, so no
// fuzzy search. Falls back to each normalized ISBN in order.
func (s *CrawlerService) resolve(ctx context.Context, entry domain.CatalogEntry) (*hardcover.Book, error) {
	book, err := s.client.SearchByTitle(ctx, entry.Title)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, hardcover.ErrNotFound) {
		return nil, err
	}

	for _, isbn := range entry.ISBNs {
		book, err = s.client.SearchByISBN(ctx, isbn)
		if err == nil {
			return book, nil
		}
		if !errors.Is(err, hardcover.ErrNotFound) {
			return nil, err
		}
	}
	return nil, hardcover.ErrNotFound
}

// CacheStats summarizes the crawl cache.
func (s *CrawlerService) CacheStats(ctx context.Context) (domain.CrawlCacheStats, error) {
	return s.cache.Stats(ctx)
}

// ResetCache drops every cached crawl result.
func (s *CrawlerService) ResetCache(ctx context.Context) error {
	return s.cache.Reset(ctx)
}

// sleepCtx sleeps for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
