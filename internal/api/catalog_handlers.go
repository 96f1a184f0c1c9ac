package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "syncCatalog",
		Method:      http.MethodPost,
		Path:        "/api/v1/catalog/sync",
		Summary:     "Sync catalog mirror",
		Description: "Re-reads the Calibre metadata and replaces the local mirror",
		Tags:        []string{"Catalog"},
	}, s.handleSyncCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCatalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog",
		Summary:     "List catalog entries",
		Description: "Returns the mirrored catalog ordered by id",
		Tags:        []string{"Catalog"},
	}, s.handleListCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCatalogEntry",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/{id}",
		Summary:     "Get catalog entry",
		Tags:        []string{"Catalog"},
	}, s.handleGetCatalogEntry)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCatalogState",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/state",
		Summary:     "Get sync state",
		Description: "Returns when and from where the mirror was last synced",
		Tags:        []string{"Catalog"},
	}, s.handleGetCatalogState)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchCatalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/search",
		Summary:     "Search the catalog",
		Description: "Full-text search over titles, authors, and tags; exact match on ISBN-shaped queries",
		Tags:        []string{"Catalog"},
	}, s.handleSearchCatalog)
}

// === DTOs ===

type SyncCatalogResponse struct {
	Count      int       `json:"count" doc:"Entries in the mirror after sync"`
	AddedIDs   []int64   `json:"added_ids" doc:"Catalog ids added by this sync"`
	RemovedIDs []int64   `json:"removed_ids" doc:"Catalog ids removed by this sync"`
	SyncedAt   time.Time `json:"synced_at" doc:"Sync completion time"`
}

type SyncCatalogOutput struct {
	Body SyncCatalogResponse
}

type ListCatalogOutput struct {
	Body struct {
		Entries []domain.CatalogEntry `json:"entries" doc:"Mirrored catalog entries"`
		Count   int                   `json:"count" doc:"Number of entries"`
	}
}

type GetCatalogEntryInput struct {
	ID int64 `path:"id" doc:"Catalog id"`
}

type CatalogEntryOutput struct {
	Body domain.CatalogEntry
}

type CatalogStateOutput struct {
	Body domain.SyncState
}

type SearchCatalogInput struct {
	Query string `query:"q" required:"true" doc:"Search query"`
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum hits"`
}

type SearchCatalogOutput struct {
	Body struct {
		Query  string       `json:"query" doc:"Echoed query"`
		Total  uint64       `json:"total" doc:"Total matching documents"`
		TookMs int64        `json:"took_ms" doc:"Search duration in milliseconds"`
		Hits   []CatalogHit `json:"hits" doc:"Matching entries, best first"`
	}
}

type CatalogHit struct {
	CatalogID  int64               `json:"catalog_id" doc:"Catalog id"`
	Score      float64             `json:"score" doc:"Relevance score"`
	Title      string              `json:"title" doc:"Book title"`
	Authors    []string            `json:"authors,omitempty" doc:"Authors"`
	Tags       []string            `json:"tags,omitempty" doc:"Tags"`
	Highlights map[string]string `json:"highlights,omitempty" doc:"Highlighted fragment per field"`
}

// === Handlers ===

func (s *Server) handleSyncCatalog(ctx context.Context, _ *struct{}) (*SyncCatalogOutput, error) {
	result, err := s.services.Mirror.Sync(ctx)
	if err != nil {
		return nil, err
	}

	return &SyncCatalogOutput{Body: SyncCatalogResponse{
		Count:      result.Count,
		AddedIDs:   result.AddedIDs,
		RemovedIDs: result.RemovedIDs,
		SyncedAt:   result.SyncedAt,
	}}, nil
}

func (s *Server) handleListCatalog(ctx context.Context, _ *struct{}) (*ListCatalogOutput, error) {
	entries, err := s.services.Mirror.Entries(ctx)
	if err != nil {
		return nil, err
	}

	out := &ListCatalogOutput{}
	out.Body.Entries = entries
	out.Body.Count = len(entries)
	return out, nil
}

func (s *Server) handleGetCatalogEntry(ctx context.Context, input *GetCatalogEntryInput) (*CatalogEntryOutput, error) {
	entry, err := s.services.Mirror.Entry(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &CatalogEntryOutput{Body: *entry}, nil
}

func (s *Server) handleGetCatalogState(ctx context.Context, _ *struct{}) (*CatalogStateOutput, error) {
	state, err := s.services.Mirror.State(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("catalog has never been synced")
		}
		return nil, err
	}
	return &CatalogStateOutput{Body: *state}, nil
}

func (s *Server) handleSearchCatalog(ctx context.Context, input *SearchCatalogInput) (*SearchCatalogOutput, error) {
	result, err := s.index.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}

	hits := make([]CatalogHit, len(result.Hits))
	for i, h := range result.Hits {
		hits[i] = CatalogHit{
			CatalogID:  h.CatalogID,
			Score:      h.Score,
			Title:      h.Title,
			Authors:    h.Authors,
			Tags:       h.Tags,
			Highlights: h.Highlights,
		}
	}

	out := &SearchCatalogOutput{}
	out.Body.Query = result.Query
	out.Body.Total = result.Total
	out.Body.TookMs = result.TookMs
	out.Body.Hits = hits
	return out, nil
}
