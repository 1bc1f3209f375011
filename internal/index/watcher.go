package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vizbase/internal/checksum"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted"; path is relative to the
// artifacts root.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on <artifactsRoot>/Baselines and keeps
// the baselines table in step with files added, replaced or removed by hand
// until ctx is cancelled. It calls cb (if non-nil) after each successful
// index mutation.
//
// Group directories created at runtime are added to the watch list. Rename
// events trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db *DB, store storage.Provider, artifactsRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	baselinesRoot := filepath.Join(artifactsRoot, models.BaselinesDir)
	if err := os.MkdirAll(baselinesRoot, 0o755); err != nil {
		return fmt.Errorf("index: create baselines dir: %w", err)
	}
	if err := addDirsRecursive(w, baselinesRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", baselinesRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
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
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// Files may land in the directory before it is watched.
					scheduleReconcile()
					continue
				}
			}

			rel, ok := relBaseline(artifactsRoot, ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				prev, getErr := db.GetBaseline(rel)
				if getErr == nil && prev.Checksum == checksum.Sum(data) {
					continue
				}
				if idxErr := indexFile(db, rel, data, time.Now()); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if getErr != nil {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteBaseline(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old path only; the new one arrives as Create.
				if delErr := db.DeleteBaseline(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else if cb != nil {
					cb("deleted", rel)
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

// relBaseline maps an absolute event path to a Baselines/{group}/{name}.png
// path relative to the artifacts root.
func relBaseline(artifactsRoot, abs string) (string, bool) {
	if strings.HasPrefix(filepath.Base(abs), ".vizbase-tmp-") {
		return "", false
	}
	rel, err := filepath.Rel(artifactsRoot, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if _, ok := models.KeyFromBaselinePath(rel); !ok {
		return "", false
	}
	return rel, true
}

// reconcile removes index entries whose files are gone and indexes files
// that are missing or stale in the index.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List(models.BaselinesDir, ".png")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]storage.FileMetadata, len(metas))
	for _, m := range metas {
		if _, ok := models.KeyFromBaselinePath(m.Path); ok {
			disk[m.Path] = m
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeleteBaseline(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb("deleted", p)
				}
			}
		}
	}

	for p, m := range disk {
		old, known := checksums[p]
		if known && old == m.Checksum {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		if idxErr := indexFile(db, p, data, m.UpdatedAt); idxErr == nil {
			kind := "created"
			if known {
				kind = "updated"
			}
			logger.Debug("reconcile: indexed", slog.String("path", p), slog.String("op", kind))
			if cb != nil {
				cb(kind, p)
			}
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
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
