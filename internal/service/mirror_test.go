package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookscoutapp/bookscout-server/internal/calibre"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/search"
	"github.com/bookscoutapp/bookscout-server/internal/store"

	_ "modernc.org/sqlite"
)

// newTestLibrary builds a minimal Calibre-shaped metadata.db and returns
// its path plus the open handle for later mutation.
func newTestLibrary(t *testing.T) (string, *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metadata.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT, path TEXT, has_cover BOOL);
		CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE books_authors_link (id INTEGER PRIMARY KEY, book INTEGER, author INTEGER);
		CREATE TABLE identifiers (id INTEGER PRIMARY KEY, book INTEGER, type TEXT, val TEXT);
		CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE books_tags_link (id INTEGER PRIMARY KEY, book INTEGER, tag INTEGER);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)

	seed := `
		INSERT INTO books VALUES (1, 'Dune', 'Frank Herbert/Dune (1)', 1);
		INSERT INTO books VALUES (2, 'Foundation', 'Isaac Asimov/Foundation (2)', 0);
		INSERT INTO authors VALUES (10, 'Frank Herbert');
		INSERT INTO authors VALUES (11, 'Isaac Asimov');
		INSERT INTO books_authors_link VALUES (1, 1, 10);
		INSERT INTO books_authors_link VALUES (2, 2, 11);
		INSERT INTO identifiers VALUES (1, 1, 'isbn', '9780441013593');
	`
	_, err = db.Exec(seed)
	require.NoError(t, err)

	return path, db
}

func newTestMirror(t *testing.T, st *store.Store, metadataPath string) *MirrorService {
	t.Helper()

	index, err := search.NewCatalogIndex(search.Options{
		DataPath: t.TempDir(),
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	reader := calibre.NewReader(testLogger())
	activity := NewActivityService(st, nil, testLogger())
	return NewMirrorService(reader, st, index, activity, nil, testLogger(), metadataPath)
}

func TestSyncMirrorsCatalog(t *testing.T) {
	st := newTestStore(t)
	path, _ := newTestLibrary(t)
	mirror := newTestMirror(t, st, path)
	ctx := context.Background()

	result, err := mirror.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Len(t, result.AddedIDs, 2)
	assert.Empty(t, result.RemovedIDs)

	entries, err := mirror.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Dune", entries[0].Title)
	assert.Equal(t, []string{"Frank Herbert"}, entries[0].Authors)

	state, err := mirror.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, state.EntryCount)
	assert.Equal(t, path, state.SourcePath)
}

func TestSyncIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	path, _ := newTestLibrary(t)
	mirror := newTestMirror(t, st, path)
	ctx := context.Background()

	_, err := mirror.Sync(ctx)
	require.NoError(t, err)

	second, err := mirror.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Count)
	assert.Empty(t, second.AddedIDs)
	assert.Empty(t, second.RemovedIDs)
}

func TestSyncTracksSourceChanges(t *testing.T) {
	st := newTestStore(t)
	path, db := newTestLibrary(t)
	mirror := newTestMirror(t, st, path)
	ctx := context.Background()

	_, err := mirror.Sync(ctx)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM books WHERE id = 2`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO books VALUES (3, 'Hyperion', 'Dan Simmons/Hyperion (3)', 0)`)
	require.NoError(t, err)

	result, err := mirror.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []int64{3}, result.AddedIDs)
	assert.Equal(t, []int64{2}, result.RemovedIDs)
}

func TestSyncRequiresMetadataPath(t *testing.T) {
	st := newTestStore(t)
	mirror := newTestMirror(t, st, "")

	_, err := mirror.Sync(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNotConfigured))
}
