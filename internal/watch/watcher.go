// Package watch re-runs ingestion when files under the data directory change.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of file events into one run
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory tree and calls a handler after changes settle
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	logger   *zap.Logger
}

// New creates a watcher for root. onChange runs on the watcher goroutine, so
// runs never overlap.
func New(root string, debounce time.Duration, onChange func(ctx context.Context) error, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{root: root, debounce: debounce, onChange: onChange, logger: logger}
}

// Run blocks until ctx is cancelled. Handler errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes", zap.String("dir", w.root))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			w.logger.Debug("file event", zap.String("name", event.Name), zap.String("op", event.Op.String()))
			if event.Has(fsnotify.Create) {
				// new subdirectories need their own watch
				_ = w.addTree(fsw, event.Name)
			}
			pending = true
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := w.onChange(ctx); err != nil {
				w.logger.Error("re-ingestion failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
}
