package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/service"
)

func (s *Server) registerSuggestionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listSuggestions",
		Method:      http.MethodGet,
		Path:        "/api/v1/suggestions",
		Summary:     "List ranked suggestions",
		Description: "Returns visible suggestions scored against the current catalog, best match first. Suggestions that turn out to be already owned are removed as a side effect.",
		Tags:        []string{"Suggestions"},
	}, s.handleListSuggestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSuggestionVisibility",
		Method:      http.MethodPost,
		Path:        "/api/v1/suggestions/visibility",
		Summary:     "Hide or unhide suggestions",
		Tags:        []string{"Suggestions"},
	}, s.handleSetSuggestionVisibility)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteSuggestion",
		Method:      http.MethodDelete,
		Path:        "/api/v1/suggestions/{id}",
		Summary:     "Delete a suggestion",
		Tags:        []string{"Suggestions"},
	}, s.handleDeleteSuggestion)
}

// === DTOs ===

type ListSuggestionsInput struct {
	Hidden bool `query:"hidden" doc:"Return hidden suggestions instead of visible ones"`
}

type ListSuggestionsOutput struct {
	Body struct {
		Suggestions []domain.RankedSuggestion `json:"suggestions" doc:"Ranked suggestions, best first"`
		Count       int                       `json:"count" doc:"Number of suggestions"`
	}
}

type SetVisibilityRequest struct {
	Ids   []string `json:"ids" validate:"required,min=1" doc:"Suggestion ids"`
	State string   `json:"state" validate:"required,oneof=visible hidden ignored" doc:"Target visibility"`
}

type SetVisibilityInput struct {
	Body SetVisibilityRequest
}

type SetVisibilityOutput struct {
	Body struct {
		Updated int      `json:"updated" doc:"Suggestions updated"`
		Missing []string `json:"missing,omitempty" doc:"Ids that did not exist"`
	}
}

type DeleteSuggestionInput struct {
	ID string `path:"id" doc:"Suggestion id"`
}

type DeleteSuggestionOutput struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation"`
	}
}

// === Handlers ===

func (s *Server) handleListSuggestions(ctx context.Context, input *ListSuggestionsInput) (*ListSuggestionsOutput, error) {
	var (
		entries []domain.SuggestedEntry
		err     error
	)
	if input.Hidden {
		entries, err = s.services.Suggested.GetByHidden(ctx, domain.HiddenHidden)
	} else {
		entries, err = s.services.Suggested.GetVisible(ctx)
	}
	if err != nil {
		return nil, err
	}

	ranked, err := s.services.Ranking.Rank(ctx, entries)
	if err != nil {
		return nil, err
	}

	// Ranking flags suggestions whose ISBNs match owned books; drop them
	// here so they stop resurfacing.
	if owned := service.OwnedIDs(ranked); len(owned) > 0 {
		if _, err := s.services.Suggested.Delete(ctx, owned...); err != nil {
			s.logger.Warn("failed to remove owned suggestions", "error", err)
		}
	}

	visible := make([]domain.RankedSuggestion, 0, len(ranked))
	for _, r := range ranked {
		if !r.AlreadyInCalibre {
			visible = append(visible, r)
		}
	}

	out := &ListSuggestionsOutput{}
	out.Body.Suggestions = visible
	out.Body.Count = len(visible)
	return out, nil
}

func (s *Server) handleSetSuggestionVisibility(ctx context.Context, input *SetVisibilityInput) (*SetVisibilityOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	state, err := parseHiddenState(input.Body.State)
	if err != nil {
		return nil, err
	}

	missing, err := s.services.Suggested.Hide(ctx, input.Body.Ids, state)
	if err != nil {
		return nil, err
	}

	out := &SetVisibilityOutput{}
	out.Body.Updated = len(input.Body.Ids) - len(missing)
	out.Body.Missing = missing
	return out, nil
}

func (s *Server) handleDeleteSuggestion(ctx context.Context, input *DeleteSuggestionInput) (*DeleteSuggestionOutput, error) {
	deleted, err := s.services.Suggested.Delete(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, errors.NotFoundf("suggestion %s not found", input.ID)
	}

	out := &DeleteSuggestionOutput{}
	out.Body.Message = "suggestion deleted"
	return out, nil
}

func parseHiddenState(s string) (domain.HiddenState, error) {
	switch s {
	case "visible":
		return domain.HiddenVisible, nil
	case "hidden":
		return domain.HiddenHidden, nil
	case "ignored":
		return domain.HiddenIgnored, nil
	default:
		return 0, errors.Validation("state must be visible, hidden, or ignored")
	}
}
