package registry

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// resyncDelay collapses bursts of file events into a single catalog resync.
const resyncDelay = 200 * time.Millisecond

// Watch watches the quills directory recursively and keeps the catalog in
// sync until ctx is cancelled. Every resync's changes are delivered to cb
// when cb is non-nil.
func Watch(ctx context.Context, db *DB, quillsDir string, logger *slog.Logger, cb func(Change)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: create watcher: %w", err)
	}
	defer w.Close()

	if err := addDirsRecursive(w, quillsDir); err != nil {
		return fmt.Errorf("registry: watch %s: %w", quillsDir, err)
	}
	logger.Info("watcher: started", slog.String("root", quillsDir))

	var timer *time.Timer
	var pending <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(resyncDelay)
			pending = timer.C
			return
		}
		timer.Reset(resyncDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-pending:
			changes, err := Sync(db, quillsDir, logger)
			if err != nil {
				logger.Warn("watcher: resync failed", slog.String("error", err.Error()))
				continue
			}
			if cb != nil {
				for _, c := range changes {
					cb(c)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if st, statErr := os.Stat(ev.Name); statErr == nil && st.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
				}
			}
			schedule()

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
