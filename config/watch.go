package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	coalesce "github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 200 * time.Millisecond

// Watcher reloads a configuration file when it changes on disk. A file
// that fails to load is logged and the previous snapshot stays active.
type Watcher struct {
	path     string
	onChange func(*Snapshot)

	mu       sync.Mutex
	lastErr  error
	debounce func(func())
}

// NewWatcher creates a watcher for path. onChange receives every
// snapshot that loads successfully.
func NewWatcher(path string, onChange func(*Snapshot)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: coalesce.New(reloadDelay),
	}
}

// Run watches until ctx is done. The parent directory is watched so
// that editors replacing the file by rename are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	slog.Debug("Watching configuration", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.debounce(func() {
				if ctx.Err() == nil {
					w.Reload()
				}
			})
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

// Reload loads the file now. It returns the error of a failed load,
// which is also logged.
func (w *Watcher) Reload() error {
	snap, err := LoadFile(w.path)

	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()

	if err != nil {
		slog.Error("Configuration rejected, keeping previous", "path", w.path, "error", err)
		return err
	}
	slog.Info("Configuration reloaded", "path", w.path, "bindings", len(snap.Keys()))
	if w.onChange != nil {
		w.onChange(snap)
	}
	return nil
}

// LastError returns the error of the most recent reload, nil if it
// succeeded.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}
