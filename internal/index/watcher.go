package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/mosaic/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the library root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db ImageIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					// Files may land in the directory before it is watched.
					scheduleReconcile()
					continue
				}
			}

			if !store.IsImage(absPath) {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if _, idxErr := IndexFile(db, store, rel); idxErr != nil {
					// Partially written files fail to probe; a later Write retries.
					logger.Debug("watcher: index incomplete", slog.String("path", rel), slog.String("error", idxErr.Error()))
				}
				kind := KindUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = KindCreated
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteImage(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				notify(KindDeleted, rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old name only; the new name arrives as
				// a Create if it stays inside a watched directory.
				if delErr := db.DeleteImage(rel); delErr == nil {
					notify(KindDeleted, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile runs a Sync and reports every path whose index entry changed.
func reconcile(ctx context.Context, db ImageIndex, store storage.Provider, logger *slog.Logger, notify EventCallback) {
	before, err := db.AllFingerprints()
	if err != nil {
		logger.Warn("reconcile: all fingerprints failed", slog.String("error", err.Error()))
		return
	}
	if _, err := Sync(ctx, db, store, 4, logger); err != nil {
		logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	after, err := db.AllFingerprints()
	if err != nil {
		return
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			notify(KindDeleted, p)
		}
	}
	for p, fp := range after {
		prev, ok := before[p]
		switch {
		case !ok:
			notify(KindCreated, p)
		case prev != fp:
			notify(KindUpdated, p)
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
