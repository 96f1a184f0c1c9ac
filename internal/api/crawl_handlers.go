package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/http/response"
	"github.com/bookscoutapp/bookscout-server/internal/service"
	"github.com/bookscoutapp/bookscout-server/internal/sse"
)

func (s *Server) registerCrawlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "startCrawl",
		Method:      http.MethodPost,
		Path:        "/api/v1/crawl",
		Summary:     "Run a recommendation crawl",
		Description: "Crawls the mirrored catalog against Hardcover lists and stores new suggestions. Returns when the run completes.",
		Tags:        []string{"Crawl"},
	}, s.handleStartCrawl)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCrawlCache",
		Method:      http.MethodGet,
		Path:        "/api/v1/crawl/cache",
		Summary:     "Crawl cache status",
		Tags:        []string{"Crawl"},
	}, s.handleGetCrawlCache)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetCrawlCache",
		Method:      http.MethodDelete,
		Path:        "/api/v1/crawl/cache",
		Summary:     "Reset the crawl cache",
		Description: "Drops every cached crawl result so the next run re-crawls from scratch",
		Tags:        []string{"Crawl"},
	}, s.handleResetCrawlCache)
}

// === DTOs ===

type CrawlRequest struct {
	Limit             int     `json:"limit,omitempty" validate:"gte=0" doc:"Max catalog entries to crawl (0 = all)"`
	ListsPerBook      int     `json:"lists_per_book,omitempty" validate:"gte=0,lte=10" doc:"Lists inspected per resolved book"`
	ItemsPerList      int     `json:"items_per_list,omitempty" validate:"gte=0,lte=100" doc:"Co-listed books fetched per list"`
	MinRating         float64 `json:"min_rating,omitempty" validate:"gte=0,lte=5" doc:"Drop recommendations rated below this"`
	InterEntryDelayMs int     `json:"inter_entry_delay_ms,omitempty" validate:"gte=0,lte=60000" doc:"Pause between live crawls in milliseconds (0 = configured default)"`
	Force             bool    `json:"force,omitempty" doc:"Bypass the crawl cache"`
}

type StartCrawlInput struct {
	Body CrawlRequest
}

type CrawlRunResponse struct {
	RunID          string                           `json:"run_id" doc:"Run identifier"`
	StartedAt      time.Time                        `json:"started_at" doc:"Run start time"`
	TookMs         int64                            `json:"took_ms" doc:"Run duration in milliseconds"`
	Inspected      int                              `json:"inspected" doc:"Catalog entries processed"`
	Matched        int                              `json:"matched" doc:"Entries resolved upstream"`
	FromCache      int                              `json:"from_cache" doc:"Entries served from cache"`
	NotMatched     int                              `json:"not_matched" doc:"Entries with no upstream match"`
	Failed         int                              `json:"failed" doc:"Entries that failed"`
	NewSuggestions int                              `json:"new_suggestions" doc:"Suggestions stored by this run"`
	Canceled       bool                             `json:"canceled" doc:"True when the run was interrupted"`
	Candidates     []domain.RecommendationCandidate `json:"candidates" doc:"Aggregated candidates, most frequent first"`
}

type StartCrawlOutput struct {
	Body CrawlRunResponse
}

type CrawlCacheOutput struct {
	Body domain.CrawlCacheStats
}

type ResetCrawlCacheOutput struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation"`
	}
}

// === Handlers ===

func (s *Server) handleStartCrawl(ctx context.Context, input *StartCrawlInput) (*StartCrawlOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	result, err := s.services.Aggregator.Run(ctx, crawlRunOptions(input.Body), nil)
	if err != nil {
		return nil, err
	}

	return &StartCrawlOutput{Body: CrawlRunResponse{
		RunID:          result.RunID,
		StartedAt:      result.StartedAt,
		TookMs:         result.Took.Milliseconds(),
		Inspected:      result.Inspected,
		Matched:        result.Matched,
		FromCache:      result.FromCache,
		NotMatched:     result.NotMatched,
		Failed:         result.Failed,
		NewSuggestions: result.NewSuggestions,
		Canceled:       result.Canceled,
		Candidates:     result.Candidates,
	}}, nil
}

func (s *Server) handleGetCrawlCache(ctx context.Context, _ *struct{}) (*CrawlCacheOutput, error) {
	stats, err := s.services.Crawler.CacheStats(ctx)
	if err != nil {
		return nil, err
	}
	return &CrawlCacheOutput{Body: stats}, nil
}

func (s *Server) handleResetCrawlCache(ctx context.Context, _ *struct{}) (*ResetCrawlCacheOutput, error) {
	if err := s.services.Crawler.ResetCache(ctx); err != nil {
		return nil, err
	}

	out := &ResetCrawlCacheOutput{}
	out.Body.Message = "crawl cache reset"
	return out, nil
}

// handleCrawlStream runs a crawl and streams per-entry progress as SSE.
// Closing the connection cancels the run; whatever was already crawled
// stays committed.
func (s *Server) handleCrawlStream(w http.ResponseWriter, r *http.Request) {
	opts := service.CrawlRunOptions{}
	q := r.URL.Query()
	intParam := func(name string, dst *int) bool {
		v := q.Get(name)
		if v == "" {
			return true
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, name+" must be a non-negative integer", s.logger)
			return false
		}
		*dst = n
		return true
	}
	if !intParam("limit", &opts.Limit) ||
		!intParam("lists_per_book", &opts.ListsPerBook) ||
		!intParam("items_per_list", &opts.ItemsPerList) {
		return
	}
	if v := q.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 {
			response.BadRequest(w, "min_rating must be a non-negative number", s.logger)
			return
		}
		opts.MinRating = rating
	}
	opts.Force = q.Get("force") == "true"

	stream, err := sse.NewStream(w)
	if err != nil {
		s.logger.Error("failed to start crawl stream", "error", err)
		response.InternalError(w, "streaming not supported", s.logger)
		return
	}

	ctx := r.Context()
	result, err := s.services.Aggregator.Run(ctx, opts, func(ev sse.Event) {
		// A send failure means the client went away; the context cancel
		// that follows stops the run.
		if sendErr := stream.Send(string(ev.Type), ev); sendErr != nil {
			s.logger.Debug("crawl stream client gone", "error", sendErr)
		}
	})
	if err != nil && ctx.Err() == nil {
		_ = stream.Send("error", map[string]string{"error": err.Error()})
		return
	}
	if result != nil {
		s.logger.Info("crawl stream finished",
			"run_id", result.RunID,
			"inspected", result.Inspected,
			"canceled", result.Canceled,
		)
	}
}

func crawlRunOptions(req CrawlRequest) service.CrawlRunOptions {
	return service.CrawlRunOptions{
		CrawlOptions: service.CrawlOptions{
			ListsPerBook: req.ListsPerBook,
			ItemsPerList: req.ItemsPerList,
			MinRating:    req.MinRating,
			Force:        req.Force,
		},
		Limit:           req.Limit,
		InterEntryDelay: time.Duration(req.InterEntryDelayMs) * time.Millisecond,
	}
}
