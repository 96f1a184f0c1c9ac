package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bookscoutapp/bookscout-server/internal/calibre"
	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/search"
	"github.com/bookscoutapp/bookscout-server/internal/sse"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

// MirrorService snapshots the external Calibre catalog into the local
// mirror and keeps the search index in step.
type MirrorService struct {
	reader       *calibre.Reader
	store        *store.Store
	index        *search.CatalogIndex
	activity     *ActivityService
	sseManager   *sse.Manager
	logger       *slog.Logger
	metadataPath string

	// Serializes syncs. Readers are unaffected; ReplaceMirror is
	// transactional so they see old or new, never partial.
	syncMu sync.Mutex
}

// NewMirrorService creates a new mirror service.
func NewMirrorService(
	reader *calibre.Reader,
	store *store.Store,
	index *search.CatalogIndex,
	activity *ActivityService,
	sseManager *sse.Manager,
	logger *slog.Logger,
	metadataPath string,
) *MirrorService {
	return &MirrorService{
		reader:       reader,
		store:        store,
		index:        index,
		activity:     activity,
		sseManager:   sseManager,
		logger:       logger,
		metadataPath: metadataPath,
	}
}

// Sync re-reads the full catalog, replaces the mirror transactionally,
// and rebuilds the search index. Idempotent on unchanged source data:
// the second run reports zero added and removed ids.
func (s *MirrorService) Sync(ctx context.Context) (*domain.SyncResult, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if s.metadataPath == "" {
		return nil, errors.NotConfigured("catalog metadata path not set (set CALIBRE_METADATA_PATH)")
	}

	entries, err := s.reader.Read(ctx, s.metadataPath)
	if err != nil {
		s.activity.Record(ctx, "mirror", domain.ActivityError, "catalog sync failed", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	result, err := s.store.ReplaceMirror(ctx, entries, s.metadataPath)
	if err != nil {
		s.activity.Record(ctx, "mirror", domain.ActivityError, "mirror replace failed", map[string]any{
			"error": err.Error(),
		})
		return nil, errors.Wrap(errors.CodeStorage, "replace mirror", err)
	}

	// The index is derived state; a failed rebuild degrades search but
	// must not fail the sync.
	if err := s.index.ReplaceAll(entries); err != nil {
		s.logger.Warn("search index rebuild failed", "error", err)
		s.activity.Record(ctx, "mirror", domain.ActivityWarning, "search index rebuild failed", map[string]any{
			"error": err.Error(),
		})
	}

	s.activity.Record(ctx, "mirror", domain.ActivitySuccess, "catalog synced", map[string]any{
		"count":   result.Count,
		"added":   len(result.AddedIDs),
		"removed": len(result.RemovedIDs),
	})

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewEvent(sse.EventMirrorSynced, sse.MirrorSyncedData{
			SyncedAt: result.SyncedAt,
			Count:    result.Count,
			Added:    len(result.AddedIDs),
			Removed:  len(result.RemovedIDs),
		}))
	}

	s.logger.Info("catalog mirror synced",
		"count", result.Count,
		"added", len(result.AddedIDs),
		"removed", len(result.RemovedIDs),
	)

	return result, nil
}

// Entries returns the current mirror snapshot ordered by catalog id.
func (s *MirrorService) Entries(ctx context.Context) ([]domain.CatalogEntry, error) {
	return s.store.GetMirror(ctx)
}

// Entry returns one mirrored catalog entry by id.
func (s *MirrorService) Entry(ctx context.Context, id int64) (*domain.CatalogEntry, error) {
	entry, err := s.store.GetCatalogEntry(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("catalog entry %d not found", id)
		}
		return nil, err
	}
	return entry, nil
}

// State returns the last sync state, or ErrNotFound before first sync.
func (s *MirrorService) State(ctx context.Context) (*domain.SyncState, error) {
	return s.store.GetSyncState(ctx)
}
