package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

const mirrorColumns = `id, title, authors, isbns, tags, cover_path, path`

// scanCatalogEntry scans one catalog_mirror row.
func scanCatalogEntry(scanner interface{ Scan(dest ...any) error }) (*domain.CatalogEntry, error) {
	var (
		e         domain.CatalogEntry
		authors   string
		isbns     string
		tags      string
		coverPath sql.NullString
		path      sql.NullString
	)

	err := scanner.Scan(&e.ID, &e.Title, &authors, &isbns, &tags, &coverPath, &path)
	if err != nil {
		return nil, err
	}

	if err := fromJSONText(authors, &e.Authors); err != nil {
		return nil, err
	}
	if err := fromJSONText(isbns, &e.ISBNs); err != nil {
		return nil, err
	}
	if err := fromJSONText(tags, &e.Tags); err != nil {
		return nil, err
	}
	e.CoverPath = coverPath.String
	e.Path = path.String

	return &e, nil
}

// ReplaceMirror atomically replaces the catalog mirror with entries and
// records the sync state. The returned result carries the ids added and
// removed relative to the previous mirror contents.
func (s *Store) ReplaceMirror(ctx context.Context, entries []domain.CatalogEntry, sourcePath string) (*domain.SyncResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mirror replace: %w", err)
	}
	defer tx.Rollback()

	// Snapshot the previous id set for the delta.
	prev := make(map[int64]bool)
	rows, err := tx.QueryContext(ctx, `SELECT id FROM catalog_mirror`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		prev[id] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_mirror`); err != nil {
		return nil, err
	}

	result := &domain.SyncResult{
		Count:    len(entries),
		SyncedAt: time.Now().UTC(),
	}

	for i := range entries {
		e := &entries[i]
		authors, err := jsonText(e.Authors)
		if err != nil {
			return nil, err
		}
		isbns, err := jsonText(e.ISBNs)
		if err != nil {
			return nil, err
		}
		tags, err := jsonText(e.Tags)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_mirror (`+mirrorColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, authors, isbns, tags,
			nullString(e.CoverPath), nullString(e.Path),
		)
		if err != nil {
			return nil, fmt.Errorf("insert mirror entry %d: %w", e.ID, err)
		}

		if prev[e.ID] {
			delete(prev, e.ID)
		} else {
			result.AddedIDs = append(result.AddedIDs, e.ID)
		}
	}
	for id := range prev {
		result.RemovedIDs = append(result.RemovedIDs, id)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_state (id, last_sync_at, source_path, entry_count)
		VALUES (1, ?, ?, ?)`,
		formatTime(result.SyncedAt), sourcePath, len(entries),
	)
	if err != nil {
		return nil, fmt.Errorf("write sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mirror replace: %w", err)
	}
	return result, nil
}

// GetMirror returns every catalog entry ordered by id.
func (s *Store) GetMirror(ctx context.Context) ([]domain.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mirrorColumns+` FROM catalog_mirror ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// GetCatalogEntry returns one mirror entry by id.
// Returns ErrNotFound if the entry does not exist.
func (s *Store) GetCatalogEntry(ctx context.Context, id int64) (*domain.CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mirrorColumns+` FROM catalog_mirror WHERE id = ?`, id)

	e, err := scanCatalogEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CountMirror returns the number of mirrored entries.
func (s *Store) CountMirror(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_mirror`).Scan(&n)
	return n, err
}

// GetSyncState returns the most recent sync state.
// Returns ErrNotFound if no sync has run yet.
func (s *Store) GetSyncState(ctx context.Context) (*domain.SyncState, error) {
	var (
		state      domain.SyncState
		lastSyncAt string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync_at, source_path, entry_count FROM sync_state WHERE id = 1`).
		Scan(&lastSyncAt, &state.SourcePath, &state.EntryCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	state.LastSyncAt, err = parseTime(lastSyncAt)
	if err != nil {
		return nil, err
	}
	return &state, nil
}
