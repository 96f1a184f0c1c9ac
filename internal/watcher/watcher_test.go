package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.db")
	w, err := New(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx)
	return w, path
}

func awaitChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestNotifiesAfterWriteSettles(t *testing.T) {
	w, path := newTestWatcher(t)

	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	awaitChange(t, w)
}

func TestCoalescesWriteBursts(t *testing.T) {
	w, path := newTestWatcher(t)

	// A save burst: the db plus its SQLite sidecars.
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(path+"-wal", []byte("wal"), 0o644))
	require.NoError(t, os.WriteFile(path+"-journal", []byte("jrn"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	awaitChange(t, w)

	// The burst settles into at most one queued notification.
	select {
	case <-w.Changes():
	case <-time.After(100 * time.Millisecond):
	}
	select {
	case <-w.Changes():
		t.Fatal("burst produced more than the coalesced notifications")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIgnoresUnrelatedFiles(t *testing.T) {
	w, path := newTestWatcher(t)

	other := filepath.Join(filepath.Dir(path), "cover.jpg")
	require.NoError(t, os.WriteFile(other, []byte("img"), 0o644))

	select {
	case <-w.Changes():
		t.Fatal("unrelated file must not notify")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMissingParentDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "metadata.db"), 0, testLogger())
	assert.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	w, _ := newTestWatcher(t)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
