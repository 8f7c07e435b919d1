package index

import (
	"context"
	"io"
	"log/slog"

	"github.com/starford/mosaic/internal/models"
	"github.com/starford/mosaic/internal/probe"
	"github.com/starford/mosaic/internal/storage"
)

// SyncStats summarises a Sync pass.
type SyncStats struct {
	Indexed int
	Removed int
	Failed  int
}

// Sync walks the library and brings the index up to date:
//   - new/changed files are probed concurrently and upserted
//   - files removed from disk are deleted from the index
//
// Files whose header cannot be read are indexed with zero dimensions so they
// stay listed; layouts exclude them as degenerate.
func Sync(ctx context.Context, db ImageIndex, store storage.Provider, concurrency int, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	files, err := store.List("")
	if err != nil {
		return stats, err
	}
	fingerprints, err := db.AllFingerprints()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(files))
	var changed []models.ImageFile
	for _, f := range files {
		disk[f.Path] = struct{}{}
		if fingerprints[f.Path] != f.Fingerprint {
			changed = append(changed, f)
		}
	}

	if len(changed) > 0 {
		paths := make([]string, len(changed))
		for i, f := range changed {
			paths[i] = f.Path
		}
		results, err := probe.All(ctx, paths, concurrency, opener(store))
		if err != nil {
			return stats, err
		}
		for _, f := range changed {
			res := results[f.Path]
			if res.Err != nil {
				stats.Failed++
				logger.Warn("sync: probe failed", slog.String("path", f.Path), slog.String("error", res.Err.Error()))
			}
			if err := db.UpsertImage(rowFor(f, res.Width, res.Height)); err != nil {
				logger.Warn("sync: index failed", slog.String("path", f.Path), slog.String("error", err.Error()))
				continue
			}
			stats.Indexed++
			logger.Debug("sync: indexed", slog.String("path", f.Path))
		}
	}

	for p := range fingerprints {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteImage(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return stats, nil
}

// IndexFile stats and probes a single image and upserts it.
func IndexFile(db ImageIndex, store storage.Provider, path string) (ImageRow, error) {
	f, err := store.Stat(path)
	if err != nil {
		return ImageRow{}, err
	}
	rc, err := store.Open(path)
	if err != nil {
		return ImageRow{}, err
	}
	w, h, probeErr := probe.Dimensions(rc)
	_ = rc.Close()

	row := rowFor(f, w, h)
	if err := db.UpsertImage(row); err != nil {
		return ImageRow{}, err
	}
	return row, probeErr
}

func rowFor(f models.ImageFile, w, h int) ImageRow {
	return ImageRow{
		Path:        f.Path,
		Width:       w,
		Height:      h,
		Size:        f.Size,
		Fingerprint: f.Fingerprint,
		ModTime:     f.ModTime,
	}
}

func opener(store storage.Provider) probe.OpenFunc {
	return func(path string) (io.ReadCloser, error) {
		rc, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
}
