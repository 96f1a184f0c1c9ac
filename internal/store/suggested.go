package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

const suggestedColumns = `id, source_key, book, base_genres, reasons, hidden, created_at`

// scanSuggested scans one suggested row.
func scanSuggested(scanner interface{ Scan(dest ...any) error }) (*domain.SuggestedEntry, error) {
	var (
		e          domain.SuggestedEntry
		book       string
		baseGenres string
		reasons    string
		hidden     int
		createdAt  string
	)

	err := scanner.Scan(&e.ID, &e.SourceKey, &book, &baseGenres, &reasons, &hidden, &createdAt)
	if err != nil {
		return nil, err
	}

	if err := fromJSONText(book, &e.Book); err != nil {
		return nil, err
	}
	if err := fromJSONText(baseGenres, &e.BaseGenres); err != nil {
		return nil, err
	}
	if err := fromJSONText(reasons, &e.Reasons); err != nil {
		return nil, err
	}
	e.Hidden = domain.HiddenState(hidden)

	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertSuggestedIfAbsent inserts a suggestion unless its source key is
// already present. Existing rows are never updated: the genres and
// reasons recorded at first discovery are final. Returns true when a row
// was inserted.
func (s *Store) InsertSuggestedIfAbsent(ctx context.Context, entry *domain.SuggestedEntry) (bool, error) {
	book, err := jsonText(entry.Book)
	if err != nil {
		return false, err
	}
	baseGenres, err := jsonText(entry.BaseGenres)
	if err != nil {
		return false, err
	}
	reasons, err := jsonText(entry.Reasons)
	if err != nil {
		return false, err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO suggested (`+suggestedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SourceKey, book, baseGenres, reasons,
		int(entry.Hidden), formatTime(entry.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return false, ErrAlreadyExists
		}
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetSuggested returns a suggestion by id.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetSuggested(ctx context.Context, id string) (*domain.SuggestedEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+suggestedColumns+` FROM suggested WHERE id = ?`, id)

	e, err := scanSuggested(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetVisibleSuggested returns every suggestion not hidden or ignored,
// oldest first.
func (s *Store) GetVisibleSuggested(ctx context.Context) ([]domain.SuggestedEntry, error) {
	return s.querySuggested(ctx,
		`SELECT `+suggestedColumns+` FROM suggested WHERE hidden = 0 ORDER BY created_at, id`)
}

// GetAllSuggested returns every suggestion regardless of state,
// oldest first.
func (s *Store) GetAllSuggested(ctx context.Context) ([]domain.SuggestedEntry, error) {
	return s.querySuggested(ctx,
		`SELECT `+suggestedColumns+` FROM suggested ORDER BY created_at, id`)
}

func (s *Store) querySuggested(ctx context.Context, query string, args ...any) ([]domain.SuggestedEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.SuggestedEntry
	for rows.Next() {
		e, err := scanSuggested(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// SetSuggestedHidden updates the visibility state of a suggestion.
// Returns ErrNotFound if it does not exist.
func (s *Store) SetSuggestedHidden(ctx context.Context, id string, state domain.HiddenState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE suggested SET hidden = ? WHERE id = ?`, int(state), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSuggested removes suggestions by id. Missing ids are ignored.
func (s *Store) DeleteSuggested(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM suggested WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}
