// Package watcher notifies the mirror when the Calibre metadata file
// changes on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long the metadata file must stay quiet
// before a change is reported.
const DefaultSettleDelay = 2 * time.Second

// Watcher watches a single metadata file by watching its parent
// directory. Calibre saves through SQLite, so one library edit shows up
// as a burst of writes to the db file and its -wal and -journal
// siblings; the settle delay collapses the burst into one notification.
type Watcher struct {
	path   string
	settle time.Duration
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	changes chan time.Time

	mu    sync.Mutex
	timer *time.Timer

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a watcher for the given file. settle <= 0 uses
// DefaultSettleDelay. The parent directory must exist; the file itself
// may not yet.
func New(path string, settle time.Duration, logger *slog.Logger) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:    path,
		settle:  settle,
		fsw:     fsw,
		logger:  logger,
		changes: make(chan time.Time, 1),
		done:    make(chan struct{}),
	}, nil
}

// Start processes filesystem events until the context is canceled or
// Stop is called. It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	w.logger.Info("watching metadata file", "path", w.path, "settle", w.settle)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("metadata watch error", "error", err)
		}
	}
}

// Changes delivers one timestamp per settled change. The channel has a
// one-slot buffer; a change arriving while a previous one is still
// undelivered is coalesced.
func (w *Watcher) Changes() <-chan time.Time {
	return w.changes
}

// Stop releases the filesystem watch and stops the settle timer.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !w.concerns(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.emit)
}

// concerns reports whether a changed path belongs to the watched file,
// including SQLite's sidecar files.
func (w *Watcher) concerns(name string) bool {
	name = filepath.Clean(name)
	if name == w.path {
		return true
	}
	return strings.HasPrefix(name, w.path+"-")
}

func (w *Watcher) emit() {
	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.changes <- time.Now():
	default:
		// A change is already queued; the consumer will pick up the
		// latest state anyway.
	}
}
