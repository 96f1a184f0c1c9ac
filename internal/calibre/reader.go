// Package calibre reads a Calibre library's metadata.db into catalog
// entries. The database is opened read-only and in one pass; Calibre
// owns the file and may rewrite it at any time.
package calibre

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/normalize"

	_ "modernc.org/sqlite"
)

// Reader reads catalog entries from a Calibre metadata.db file.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Calibre catalog reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// Read opens the metadata database at path and returns every book as a
// catalog entry. All-or-nothing: any failure returns no entries.
func (r *Reader) Read(ctx context.Context, path string) ([]domain.CatalogEntry, error) {
	if path == "" {
		return nil, errors.NotConfigured("CALIBRE_METADATA_PATH is not set")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("calibre metadata not found at %s", path)
		}
		return nil, errors.Storagef("calibre metadata unreadable: %v", err)
	}

	// mode=ro keeps us from ever writing to Calibre's database;
	// immutable is not used because Calibre may hold the file open.
	dsn := fmt.Sprintf("file:%s?mode=ro", url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Storage("open calibre metadata").WithCause(err)
	}
	defer db.Close()

	entries, err := r.readBooks(ctx, db)
	if err != nil {
		return nil, err
	}

	if err := r.attachAuthors(ctx, db, entries); err != nil {
		return nil, err
	}
	if err := r.attachISBNs(ctx, db, entries); err != nil {
		return nil, err
	}
	if err := r.attachTags(ctx, db, entries); err != nil {
		return nil, err
	}

	out := make([]domain.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}

	r.logger.Debug("calibre catalog read", "path", path, "books", len(out))
	return out, nil
}

// readBooks loads the books table, keyed by Calibre book id. Iteration
// order of the returned map is irrelevant; callers sort by id.
func (r *Reader) readBooks(ctx context.Context, db *sql.DB) (map[int64]*domain.CatalogEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, path, has_cover
		FROM books
		ORDER BY id`)
	if err != nil {
		return nil, errors.Storage("query calibre books").WithCause(err)
	}
	defer rows.Close()

	entries := make(map[int64]*domain.CatalogEntry)
	for rows.Next() {
		var (
			e        domain.CatalogEntry
			hasCover bool
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Path, &hasCover); err != nil {
			return nil, errors.Storage("scan calibre book").WithCause(err)
		}
		if hasCover {
			e.CoverPath = e.Path + "/cover.jpg"
		}
		entries[e.ID] = &e
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage("iterate calibre books").WithCause(err)
	}
	return entries, nil
}

func (r *Reader) attachAuthors(ctx context.Context, db *sql.DB, entries map[int64]*domain.CatalogEntry) error {
	rows, err := db.QueryContext(ctx, `
		SELECT l.book, a.name
		FROM books_authors_link l
		JOIN authors a ON a.id = l.author
		ORDER BY l.book, l.id`)
	if err != nil {
		return errors.Storage("query calibre authors").WithCause(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			name   string
		)
		if err := rows.Scan(&bookID, &name); err != nil {
			return errors.Storage("scan calibre author").WithCause(err)
		}
		if e, ok := entries[bookID]; ok {
			e.Authors = append(e.Authors, name)
		}
	}
	return rows.Err()
}

func (r *Reader) attachISBNs(ctx context.Context, db *sql.DB, entries map[int64]*domain.CatalogEntry) error {
	rows, err := db.QueryContext(ctx, `
		SELECT book, val
		FROM identifiers
		WHERE type = 'isbn'
		ORDER BY book, id`)
	if err != nil {
		return errors.Storage("query calibre identifiers").WithCause(err)
	}
	defer rows.Close()

	raw := make(map[int64][]string)
	for rows.Next() {
		var (
			bookID int64
			val    string
		)
		if err := rows.Scan(&bookID, &val); err != nil {
			return errors.Storage("scan calibre identifier").WithCause(err)
		}
		raw[bookID] = append(raw[bookID], val)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for bookID, vals := range raw {
		if e, ok := entries[bookID]; ok {
			e.ISBNs = normalize.ISBNSet(vals)
		}
	}
	return nil
}

func (r *Reader) attachTags(ctx context.Context, db *sql.DB, entries map[int64]*domain.CatalogEntry) error {
	rows, err := db.QueryContext(ctx, `
		SELECT l.book, t.name
		FROM books_tags_link l
		JOIN tags t ON t.id = l.tag
		ORDER BY l.book, l.id`)
	if err != nil {
		return errors.Storage("query calibre tags").WithCause(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			name   string
		)
		if err := rows.Scan(&bookID, &name); err != nil {
			return errors.Storage("scan calibre tag").WithCause(err)
		}
		if e, ok := entries[bookID]; ok {
			e.Tags = append(e.Tags, name)
		}
	}
	return rows.Err()
}
