package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/sse"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

// CrawlRunOptions configures one aggregation run over the mirror.
type CrawlRunOptions struct {
	CrawlOptions
	// Limit caps how many catalog entries are considered (0 = all).
	Limit int
	// InterEntryDelay overrides the configured pause between live
	// crawls. Cache hits never pause.
	InterEntryDelay time.Duration
}

// CrawlStep is the per-entry trace record of a run.
type CrawlStep struct {
	CatalogID int64              `json:"catalog_id"`
	Title     string             `json:"title"`
	Status    domain.CrawlStatus `json:"status"`
	FromCache bool               `json:"from_cache"`
	Lists     int                `json:"lists"`
	Recs      int                `json:"recs"`
	Error     string             `json:"error,omitempty"`
}

// CrawlRunResult is the outcome of one aggregation run. Batch runs
// always return partial results plus the per-step trace; a run is never
// all-or-nothing.
type CrawlRunResult struct {
	RunID          string                           `json:"run_id"`
	StartedAt      time.Time                        `json:"started_at"`
	Took           time.Duration                    `json:"took_ms"`
	Inspected      int                              `json:"inspected"`
	Matched        int                              `json:"matched"`
	FromCache      int                              `json:"from_cache"`
	NotMatched     int                              `json:"not_matched"`
	Failed         int                              `json:"failed"`
	NewSuggestions int                              `json:"new_suggestions"`
	Canceled       bool                             `json:"canceled"`
	Candidates     []domain.RecommendationCandidate `json:"candidates"`
	Steps          []CrawlStep                      `json:"steps"`
}

// AggregatorService merges per-entry crawl results into a deduplicated,
// occurrence-counted recommendation set and stores new suggestions.
type AggregatorService struct {
	crawler    *CrawlerService
	suggested  *SuggestedService
	store      *store.Store
	activity   *ActivityService
	sseManager *sse.Manager
	cfg        config.CrawlConfig
	logger     *slog.Logger
}

// NewAggregatorService creates a new aggregator service.
func NewAggregatorService(
	crawler *CrawlerService,
	suggested *SuggestedService,
	store *store.Store,
	activity *ActivityService,
	sseManager *sse.Manager,
	cfg config.CrawlConfig,
	logger *slog.Logger,
) *AggregatorService {
	return &AggregatorService{
		crawler:    crawler,
		suggested:  suggested,
		store:      store,
		activity:   activity,
		sseManager: sseManager,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run crawls the mirror in catalog order, aggregates recommendations,
// and stores new suggestions. emit, when non-nil, receives one event
// per processed entry plus start/suggestion/finish events in order;
// the same events are broadcast to connected stream clients.
//
// Cancellation stops further external calls and delays immediately but
// leaves already-committed cache and store writes intact; the partial
// result is returned with Canceled set instead of an error.
func (s *AggregatorService) Run(ctx context.Context, opts CrawlRunOptions, emit func(sse.Event)) (*CrawlRunResult, error) {
	entries, err := s.store.GetMirror(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "read mirror", err)
	}
	if len(entries) == 0 {
		return nil, errors.NotFound("catalog mirror is empty; sync the mirror first")
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}

	delay := opts.InterEntryDelay
	if delay <= 0 {
		delay = s.cfg.InterEntryDelay
	}

	result := &CrawlRunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	send := func(ev sse.Event) {
		if emit != nil {
			emit(ev)
		}
		if s.sseManager != nil {
			s.sseManager.Emit(ev)
		}
	}

	send(sse.NewEvent(sse.EventCrawlStarted, sse.CrawlStartedData{
		RunID:   result.RunID,
		Entries: len(entries),
	}))

	// Aggregation state: candidates keyed by stable key, keys kept in
	// encounter order so occurrence ties sort deterministically.
	candidates := make(map[string]*domain.RecommendationCandidate)
	var order []string

	for i, entry := range entries {
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}

		step := CrawlStep{CatalogID: entry.ID, Title: entry.Title}
		crawlResult, fromCache, err := s.crawler.CrawlEntry(ctx, entry, opts.CrawlOptions)
		if err != nil && ctx.Err() != nil {
			result.Canceled = true
			break
		}
		result.Inspected++

		switch {
		case err != nil:
			// Per-entry failures never abort the batch.
			result.Failed++
			step.Error = err.Error()
			s.logger.Warn("entry crawl failed",
				"catalog_id", entry.ID, "title", entry.Title, "error", err)
		default:
			step.Status = crawlResult.Status
			step.FromCache = fromCache
			step.Lists = crawlResult.ListCount
			step.Recs = crawlResult.RecCount
			if fromCache {
				result.FromCache++
			}
			if crawlResult.Matched() {
				result.Matched++
				s.fold(candidates, &order, entry.Title, crawlResult)
			} else {
				result.NotMatched++
			}
		}
		result.Steps = append(result.Steps, step)

		send(sse.NewEvent(sse.EventCrawlEntry, sse.CrawlEntryData{
			RunID:     result.RunID,
			CatalogID: entry.ID,
			Title:     entry.Title,
			Status:    step.Status,
			FromCache: step.FromCache,
			Lists:     step.Lists,
			Recs:      step.Recs,
			Error:     step.Error,
			Position:  i + 1,
			Total:     len(entries),
		}))

		// Pause only between live crawls; cache hits cost the upstream
		// nothing.
		if !fromCache && i < len(entries)-1 {
			if sleepCtx(ctx, delay) != nil {
				result.Canceled = true
				break
			}
		}
	}

	// Summary: occurrence count descending, ties by encounter order.
	result.Candidates = make([]domain.RecommendationCandidate, 0, len(order))
	for _, key := range order {
		result.Candidates = append(result.Candidates, *candidates[key])
	}
	sort.SliceStable(result.Candidates, func(a, b int) bool {
		return result.Candidates[a].Occurrences > result.Candidates[b].Occurrences
	})

	inserted, err := s.suggested.UpsertMissing(ctx, result.Candidates)
	if err != nil {
		s.logger.Error("store suggestions", "error", err)
		s.activity.Record(ctx, "crawler", domain.ActivityWarning, "crawl finished but storing suggestions failed", map[string]any{
			"run_id": result.RunID,
			"error":  err.Error(),
		})
	}
	result.NewSuggestions = len(inserted)
	for i := range inserted {
		e := &inserted[i]
		send(sse.NewEvent(sse.EventCrawlSuggestion, sse.CrawlSuggestionData{
			RunID:      result.RunID,
			Suggestion: e.ID,
			Title:      e.Book.Title,
			Authors:    e.Book.Authors,
			Reasons:    e.Reasons,
		}))
	}

	result.Took = time.Since(result.StartedAt)

	send(sse.NewEvent(sse.EventCrawlFinished, sse.CrawlFinishedData{
		RunID:          result.RunID,
		Crawled:        result.Inspected,
		FromCache:      result.FromCache,
		NotMatched:     result.NotMatched,
		Failed:         result.Failed,
		NewSuggestions: result.NewSuggestions,
		Canceled:       result.Canceled,
		Took:           result.Took,
	}))

	level := domain.ActivitySuccess
	msg := "crawl run finished"
	if result.Canceled {
		level = domain.ActivityWarning
		msg = "crawl run canceled"
	} else if result.Failed > 0 {
		level = domain.ActivityWarning
	}
	s.activity.Record(context.WithoutCancel(ctx), "crawler", level, msg, map[string]any{
		"run_id":          result.RunID,
		"inspected":       result.Inspected,
		"matched":         result.Matched,
		"failed":          result.Failed,
		"new_suggestions": result.NewSuggestions,
	})

	return result, nil
}

// fold merges one matched crawl result into the aggregation state.
// Occurrence counts sum; reasons concatenate in discovery order and are
// deliberately not deduplicated.
func (s *AggregatorService) fold(candidates map[string]*domain.RecommendationCandidate, order *[]string, sourceTitle string, crawlResult *domain.CrawlCacheEntry) {
	for i := range crawlResult.Recommendations {
		rec := &crawlResult.Recommendations[i]
		key := rec.Key()

		candidate, seen := candidates[key]
		if !seen {
			candidate = &domain.RecommendationCandidate{
				Recommendation: *rec,
				BaseGenres:     crawlResult.BaseGenres,
			}
			candidates[key] = candidate
			*order = append(*order, key)
		}

		candidate.Occurrences++
		candidate.Reasons = append(candidate.Reasons, reasonString(rec.SourceList, sourceTitle))
	}
}

// reasonString renders the human-readable discovery reason.
func reasonString(listName, sourceTitle string) string {
	if listName == "" {
		return fmt.Sprintf("co-listed with %q", sourceTitle)
	}
	return fmt.Sprintf("found in list %q via %q", listName, sourceTitle)
}
