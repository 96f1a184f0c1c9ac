package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/hardcover"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

// wantListIDKey is the external_state key holding the resolved list id.
const wantListIDKey = "want_list_id"

// defaultWantListLimit bounds one snapshot fetch.
const defaultWantListLimit = 500

// WantListService mirrors the external want-to-read list so ranking can
// exclude books already queued.
type WantListService struct {
	client   *hardcover.Client
	store    *store.Store
	activity *ActivityService
	cfg      config.HardcoverConfig
	logger   *slog.Logger
}

// NewWantListService creates a new want-list service.
func NewWantListService(client *hardcover.Client, store *store.Store, activity *ActivityService, cfg config.HardcoverConfig, logger *slog.Logger) *WantListService {
	return &WantListService{
		client:   client,
		store:    store,
		activity: activity,
		cfg:      cfg,
		logger:   logger,
	}
}

// hardcoverError lifts client sentinel failures into domain error codes
// so HTTP handlers and the scheduler see the error taxonomy rather than
// the raw transport error. An unset token is a setup state, not an
// internal failure.
func hardcoverError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hardcover.ErrNotConfigured):
		return errors.Wrap(errors.CodeNotConfigured, "hardcover API token is not configured (set HARDCOVER_TOKEN)", err)
	case errors.Is(err, hardcover.ErrRateLimited):
		return errors.Wrap(errors.CodeRateLimited, "hardcover is rate limiting requests, try again later", err)
	case errors.Is(err, hardcover.ErrNotFound):
		return errors.Wrap(errors.CodeNotFound, op+" found nothing upstream", err)
	case errors.Is(err, hardcover.ErrUpstream), errors.Is(err, hardcover.ErrMalformed):
		return errors.Wrap(errors.CodeUpstream, op+" failed upstream", err)
	default:
		return err
	}
}

// ResolveListID discovers the account's want-to-read list id and stores
// it. force re-resolves even when a cached id exists; schema drift on
// the upstream occasionally renumbers lists.
func (s *WantListService) ResolveListID(ctx context.Context, force bool) (string, error) {
	if !force {
		cached, err := s.store.GetExternalState(ctx, wantListIDKey)
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && err != store.ErrNotFound {
			return "", errors.Wrap(errors.CodeStorage, "read want-list id", err)
		}
	}

	if s.cfg.Username == "" {
		return "", errors.NotConfigured("hardcover username is not configured")
	}

	listID, err := s.client.ResolveWantListID(ctx, s.cfg.Username)
	if err != nil {
		return "", hardcoverError("resolve want-list id", err)
	}

	if err := s.store.SetExternalState(ctx, wantListIDKey, listID); err != nil {
		return "", errors.Wrap(errors.CodeStorage, "persist want-list id", err)
	}
	s.logger.Info("want-list id resolved", "username", s.cfg.Username, "list_id", listID)
	return listID, nil
}

// Refresh replaces the local want-list snapshot with the upstream state.
func (s *WantListService) Refresh(ctx context.Context) ([]domain.WantListEntry, error) {
	listID, err := s.ResolveListID(ctx, false)
	if err != nil {
		return nil, err
	}

	books, err := s.client.WantList(ctx, listID, defaultWantListLimit)
	if err != nil {
		return nil, hardcoverError("fetch want list", err)
	}

	now := time.Now().UTC()
	entries := make([]domain.WantListEntry, 0, len(books))
	for _, b := range books {
		entries = append(entries, domain.WantListEntry{
			BookID:  b.ID,
			Title:   b.Title,
			Slug:    b.Slug,
			ISBNs:   b.ISBNs,
			AddedAt: now,
		})
	}

	if err := s.store.ReplaceWantList(ctx, entries); err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "replace want list", err)
	}

	s.logger.Info("want list refreshed", "entries", len(entries))
	s.activity.Record(ctx, "wantlist", domain.ActivitySuccess, "want list refreshed", map[string]any{
		"entries": len(entries),
	})
	return entries, nil
}

// Get returns the local want-list snapshot.
func (s *WantListService) Get(ctx context.Context) ([]domain.WantListEntry, error) {
	return s.store.GetWantList(ctx)
}
