// Package watch reruns a callback when a file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satishbabariya/relquery/internal/logging"
)

// DefaultDebounce is how long writes must settle before the callback runs.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches one file.
type Watcher struct {
	file     string
	callback func(ctx context.Context) error
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// New creates a watcher for file. The directory is watched so editors that
// replace the file on save are seen.
func New(file string, debounce time.Duration, logger *slog.Logger, callback func(ctx context.Context) error) (*Watcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		file:     abs,
		callback: callback,
		debounce: debounce,
		logger:   logging.OrDiscard(logger),
		watcher:  w,
	}, nil
}

// Run calls the callback once, then again after every change, until ctx
// is done. Callback errors after the first call are logged.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if path, err := filepath.Abs(event.Name); err != nil || path != w.file {
				continue
			}
			timer.Reset(w.debounce)
			pending = timer.C

		case <-pending:
			pending = nil
			if err := w.callback(ctx); err != nil {
				w.logger.Warn("watch callback failed", "file", w.file, "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "file", w.file, "error", err)
		}
	}
}
