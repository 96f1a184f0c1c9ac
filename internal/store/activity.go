package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

// InsertActivity appends an entry to the activity log.
func (s *Store) InsertActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	var details sql.NullString
	if len(entry.Details) > 0 {
		d, err := jsonText(entry.Details)
		if err != nil {
			return err
		}
		details = sql.NullString{String: d, Valid: true}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, source, level, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Source, string(entry.Level), entry.Message,
		details, formatTime(entry.CreatedAt),
	)
	return err
}

// RecentActivities returns up to limit entries, newest first.
func (s *Store) RecentActivities(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, level, message, details, created_at
		FROM activities
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var (
			e         domain.ActivityEntry
			level     string
			details   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Source, &level, &e.Message, &details, &createdAt); err != nil {
			return nil, err
		}
		e.Level = domain.ActivityLevel(level)
		if details.Valid {
			if err := fromJSONText(details.String, &e.Details); err != nil {
				return nil, err
			}
		}
		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneActivities deletes entries older than cutoff, returning the
// number removed.
func (s *Store) PruneActivities(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM activities WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
