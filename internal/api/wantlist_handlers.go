package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

func (s *Server) registerWantListRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getWantList",
		Method:      http.MethodGet,
		Path:        "/api/v1/wantlist",
		Summary:     "Get the want-to-read list",
		Description: "Returns the locally mirrored Hardcover want-to-read list",
		Tags:        []string{"Want list"},
	}, s.handleGetWantList)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshWantList",
		Method:      http.MethodPost,
		Path:        "/api/v1/wantlist/refresh",
		Summary:     "Refresh the want-to-read list",
		Description: "Re-fetches the want-to-read list from Hardcover and replaces the local snapshot",
		Tags:        []string{"Want list"},
	}, s.handleRefreshWantList)
}

type WantListOutput struct {
	Body struct {
		Entries []domain.WantListEntry `json:"entries" doc:"Want-list entries ordered by title"`
		Count   int                    `json:"count" doc:"Number of entries"`
	}
}

func (s *Server) handleGetWantList(ctx context.Context, _ *struct{}) (*WantListOutput, error) {
	entries, err := s.services.WantList.Get(ctx)
	if err != nil {
		return nil, err
	}

	out := &WantListOutput{}
	out.Body.Entries = entries
	out.Body.Count = len(entries)
	return out, nil
}

func (s *Server) handleRefreshWantList(ctx context.Context, _ *struct{}) (*WantListOutput, error) {
	entries, err := s.services.WantList.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	out := &WantListOutput{}
	out.Body.Entries = entries
	out.Body.Count = len(entries)
	return out, nil
}
