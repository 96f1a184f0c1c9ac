package calibre

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/bookscoutapp/bookscout-server/internal/errors"

	_ "modernc.org/sqlite"
)

// newTestLibrary builds a minimal Calibre-shaped metadata.db in a temp
// dir and returns its path.
func newTestLibrary(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metadata.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	schema := `
		CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT, path TEXT, has_cover BOOL);
		CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE books_authors_link (id INTEGER PRIMARY KEY, book INTEGER, author INTEGER);
		CREATE TABLE identifiers (id INTEGER PRIMARY KEY, book INTEGER, type TEXT, val TEXT);
		CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE books_tags_link (id INTEGER PRIMARY KEY, book INTEGER, tag INTEGER);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	seed := `
		INSERT INTO books VALUES (1, 'Dune', 'Frank Herbert/Dune (1)', 1);
		INSERT INTO books VALUES (2, 'Foundation', 'Isaac Asimov/Foundation (2)', 0);
		INSERT INTO authors VALUES (10, 'Frank Herbert');
		INSERT INTO authors VALUES (11, 'Isaac Asimov');
		INSERT INTO books_authors_link VALUES (1, 1, 10);
		INSERT INTO books_authors_link VALUES (2, 2, 11);
		INSERT INTO identifiers VALUES (1, 1, 'isbn', '978-0-441-01359-3');
		INSERT INTO identifiers VALUES (2, 1, 'amazon', 'B000R34YKC');
		INSERT INTO identifiers VALUES (3, 2, 'isbn', '0553293354');
		INSERT INTO tags VALUES (20, 'Science Fiction');
		INSERT INTO tags VALUES (21, 'Classics');
		INSERT INTO books_tags_link VALUES (1, 1, 20);
		INSERT INTO books_tags_link VALUES (2, 2, 20);
		INSERT INTO books_tags_link VALUES (3, 2, 21);
	`
	if _, err := db.Exec(seed); err != nil {
		t.Fatalf("seed data: %v", err)
	}

	return path
}

func TestRead(t *testing.T) {
	path := newTestLibrary(t)
	r := NewReader(slog.Default())

	entries, err := r.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byID := make(map[int64]int)
	for i, e := range entries {
		byID[e.ID] = i
	}

	dune := entries[byID[1]]
	if dune.Title != "Dune" {
		t.Errorf("Title: got %q", dune.Title)
	}
	if len(dune.Authors) != 1 || dune.Authors[0] != "Frank Herbert" {
		t.Errorf("Authors: got %v", dune.Authors)
	}
	if len(dune.ISBNs) != 1 || dune.ISBNs[0] != "9780441013593" {
		t.Errorf("ISBNs: got %v, want normalized ISBN-13", dune.ISBNs)
	}
	if dune.CoverPath == "" {
		t.Error("expected cover path for book with has_cover")
	}

	foundation := entries[byID[2]]
	// ISBN-10 input should be converted to ISBN-13.
	if len(foundation.ISBNs) != 1 || foundation.ISBNs[0] != "9780553293357" {
		t.Errorf("ISBNs: got %v", foundation.ISBNs)
	}
	if len(foundation.Tags) != 2 {
		t.Errorf("Tags: got %v", foundation.Tags)
	}
	if foundation.CoverPath != "" {
		t.Error("did not expect cover path without has_cover")
	}
}

func TestRead_MissingFile(t *testing.T) {
	r := NewReader(slog.Default())

	_, err := r.Read(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRead_UnsetPath(t *testing.T) {
	r := NewReader(slog.Default())

	_, err := r.Read(context.Background(), "")
	if !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("expected NOT_CONFIGURED, got %v", err)
	}
}
