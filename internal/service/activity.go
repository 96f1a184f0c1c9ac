// Package service contains the application services that tie storage,
// external clients, and the event stream together.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/id"
	"github.com/bookscoutapp/bookscout-server/internal/sse"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

// ActivityService records and retrieves activity-log entries.
type ActivityService struct {
	store      *store.Store
	sseManager *sse.Manager
	logger     *slog.Logger
}

// NewActivityService creates a new activity service.
func NewActivityService(store *store.Store, sseManager *sse.Manager, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		store:      store,
		sseManager: sseManager,
		logger:     logger,
	}
}

// Record appends an entry to the activity log. Fire-and-forget: a
// logging failure must never abort the work that produced it, so
// errors are logged and swallowed here.
func (s *ActivityService) Record(ctx context.Context, source string, level domain.ActivityLevel, message string, details map[string]any) {
	activityID, err := id.Generate("act")
	if err != nil {
		s.logger.Error("generate activity ID", "error", err)
		return
	}

	entry := &domain.ActivityEntry{
		ID:        activityID,
		Source:    source,
		Level:     level,
		Message:   message,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.InsertActivity(ctx, entry); err != nil {
		s.logger.Error("record activity",
			"source", source,
			"message", message,
			"error", err,
		)
		return
	}

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewActivityEvent(entry))
	}

	s.logger.Debug("activity recorded",
		"source", source,
		"level", string(level),
		"message", message,
	)
}

// Recent returns up to limit activity entries, newest first.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.RecentActivities(ctx, limit)
}

// Prune removes entries older than the retention window.
func (s *ActivityService) Prune(ctx context.Context, retention time.Duration) (int, error) {
	return s.store.PruneActivities(ctx, time.Now().Add(-retention))
}
