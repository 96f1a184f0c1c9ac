package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

func (s *Server) registerActivityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listActivity",
		Method:      http.MethodGet,
		Path:        "/api/v1/activity",
		Summary:     "List recent activity",
		Description: "Returns the activity log, newest first",
		Tags:        []string{"Activity"},
	}, s.handleListActivity)
}

type ListActivityInput struct {
	Limit int `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Maximum entries"`
}

type ListActivityOutput struct {
	Body struct {
		Entries []domain.ActivityEntry `json:"entries" doc:"Activity entries, newest first"`
		Count   int                    `json:"count" doc:"Number of entries"`
	}
}

func (s *Server) handleListActivity(ctx context.Context, input *ListActivityInput) (*ListActivityOutput, error) {
	entries, err := s.services.Activity.Recent(ctx, input.Limit)
	if err != nil {
		return nil, err
	}

	out := &ListActivityOutput{}
	out.Body.Entries = entries
	out.Body.Count = len(entries)
	return out, nil
}
