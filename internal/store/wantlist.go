package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

// ReplaceWantList atomically replaces the want-list snapshot.
func (s *Store) ReplaceWantList(ctx context.Context, entries []domain.WantListEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin want-list replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM want_list`); err != nil {
		return err
	}

	for i := range entries {
		e := &entries[i]
		isbns, err := jsonText(e.ISBNs)
		if err != nil {
			return err
		}

		var addedAt sql.NullString
		if !e.AddedAt.IsZero() {
			addedAt = sql.NullString{String: formatTime(e.AddedAt), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO want_list (book_id, title, slug, isbns, added_at)
			VALUES (?, ?, ?, ?, ?)`,
			e.BookID, e.Title, nullString(e.Slug), isbns, addedAt,
		)
		if err != nil {
			return fmt.Errorf("insert want-list entry %s: %w", e.BookID, err)
		}
	}

	return tx.Commit()
}

// GetWantList returns the want-list snapshot ordered by title.
func (s *Store) GetWantList(ctx context.Context) ([]domain.WantListEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id, title, slug, isbns, added_at FROM want_list ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WantListEntry
	for rows.Next() {
		var (
			e       domain.WantListEntry
			slug    sql.NullString
			isbns   string
			addedAt sql.NullString
		)
		if err := rows.Scan(&e.BookID, &e.Title, &slug, &isbns, &addedAt); err != nil {
			return nil, err
		}
		e.Slug = slug.String
		if err := fromJSONText(isbns, &e.ISBNs); err != nil {
			return nil, err
		}
		if addedAt.Valid {
			e.AddedAt, err = parseTime(addedAt.String)
			if err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetExternalState reads a value from the external_state table.
// Returns ErrNotFound for unknown keys.
func (s *Store) GetExternalState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM external_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetExternalState upserts a value in the external_state table.
func (s *Store) SetExternalState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO external_state (key, value) VALUES (?, ?)`, key, value)
	return err
}
