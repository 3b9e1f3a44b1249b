// Package watcher keeps an imported collection current as files change.
package watcher

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/fs"
	"github.com/nickcecere/lvec/internal/importer"
)

// Event names passed to the event callback.
const (
	EventImport = "import"
	EventRemove = "remove"
)

// Watcher re-imports files under root into one collection when they change.
type Watcher struct {
	root       string
	collection string
	importer   *importer.Importer
	walker     *fs.FileWalker

	// pending holds the latest op per path until the next flush
	pending      map[string]fsnotify.Op
	pendingMu    sync.Mutex
	debounceTime time.Duration

	onEvent func(event string, relPath string)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceTime sets how long events are batched before being applied.
func WithDebounceTime(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTime = d
	}
}

// WithEventCallback sets a callback invoked after each applied change.
func WithEventCallback(fn func(event string, relPath string)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// New creates a watcher for root. Ignore rules come from cfg.
func New(root, collection string, im *importer.Importer, cfg *config.Config, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	walker, err := fs.NewFileWalker(fs.WalkOptions{
		Root:           absRoot,
		MaxFileSize:    int64(cfg.Import.MaxFileSize),
		IgnorePatterns: cfg.Ignore,
		UseGitignore:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file walker: %w", err)
	}

	w := &Watcher{
		root:         absRoot,
		collection:   collection,
		importer:     im,
		walker:       walker,
		pending:      make(map[string]fsnotify.Op),
		debounceTime: 500 * time.Millisecond,
		onEvent:      func(string, string) {},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Collection returns the collection this watcher writes to.
func (w *Watcher) Collection() string {
	return w.collection
}

// Start watches until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addDirectories(watcher); err != nil {
		return err
	}

	log.Info("Watching for file changes", "root", w.root, "collection", w.collection)

	go w.processPending(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, watcher)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

// addDirectories registers every non-ignored directory below root.
func (w *Watcher) addDirectories(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}

		if path != w.root && w.walker.Ignored(w.rel(path), true) {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			log.Debug("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// handleEvent queues a file event. New directories are added to the watch
// list. A nil watcher only queues.
func (w *Watcher) handleEvent(event fsnotify.Event, watcher *fsnotify.Watcher) {
	path := event.Name
	relPath := w.rel(path)

	info, statErr := os.Stat(path)
	if statErr == nil && info.IsDir() {
		if event.Has(fsnotify.Create) && watcher != nil && !w.walker.Ignored(relPath, true) {
			if err := watcher.Add(path); err != nil {
				log.Debug("Failed to watch directory", "path", relPath, "error", err)
			} else {
				log.Debug("Added directory to watch", "path", relPath)
			}
		}
		return
	}

	if w.walker.Ignored(relPath, false) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()
}

// processPending flushes queued events on every debounce tick.
func (w *Watcher) processPending(ctx context.Context) {
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush applies all queued events.
func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	events := maps.Clone(w.pending)
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range events {
		if ctx.Err() != nil {
			return
		}

		relPath := w.rel(path)

		// A rename fires on the old name; a file that is gone is removed
		_, statErr := os.Stat(path)
		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) || os.IsNotExist(statErr) {
			n, err := w.importer.RemoveFile(ctx, w.collection, relPath)
			if err != nil {
				log.Error("Failed to remove file", "path", relPath, "error", err)
				continue
			}
			w.onEvent(EventRemove, relPath)
			log.Info("Removed from collection", "file", relPath, "documents", n)
			continue
		}

		if op.Has(fsnotify.Create) || op.Has(fsnotify.Write) {
			if err := w.importer.ImportFile(ctx, w.collection, w.root, path); err != nil {
				log.Error("Failed to import file", "path", relPath, "error", err)
				continue
			}
			w.onEvent(EventImport, relPath)
			log.Info("Imported", "file", relPath)
		}
	}
}

func (w *Watcher) rel(path string) string {
	relPath, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(relPath)
}
