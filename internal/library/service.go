// Package library coordinates the image store, the index, and dimension
// probing, and serves as the metadata source of gallery sessions.
package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/mosaic/internal/apperr"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/index"
	"github.com/starford/mosaic/internal/probe"
	"github.com/starford/mosaic/internal/storage"
)

const (
	layoutCacheSize  = 64
	failureCacheSize = 1024
)

// ErrUnsupported rejects imports that are not a decodable image of an
// accepted type.
var ErrUnsupported = errors.New("library: unsupported image")

// Options tunes a Service.
type Options struct {
	ProbeConcurrency int
	AssetBaseURL     string
}

// Image is the API representation of an indexed image.
type Image struct {
	Path    string    `json:"path"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Size    int64     `json:"size"`
	URL     string    `json:"url"`
	ModTime time.Time `json:"mod_time"`
}

// probeFailure remembers that a file version could not be probed.
type probeFailure struct {
	fingerprint string
	err         error
}

type layoutKey struct {
	version uint64
	mode    gallery.Mode
	geom    gallery.Geometry
}

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	db     index.ImageIndex
	opts   Options
	logger *slog.Logger

	version  atomic.Uint64
	layouts  *lru.Cache[layoutKey, gallery.Layout]
	failures *lru.Cache[string, probeFailure]
}

// NewService creates a new library service.
func NewService(store storage.Provider, db index.ImageIndex, opts Options, logger *slog.Logger) *Service {
	cache, err := lru.New[layoutKey, gallery.Layout](layoutCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	failures, err := lru.New[string, probeFailure](failureCacheSize)
	if err != nil {
		panic(err)
	}
	if opts.ProbeConcurrency <= 0 {
		opts.ProbeConcurrency = 8
	}
	return &Service{store: store, db: db, opts: opts, logger: logger, layouts: cache, failures: failures}
}

// Version increases whenever the set of indexed images changes.
func (s *Service) Version() uint64 {
	return s.version.Load()
}

// Touch records a library change made outside the service, e.g. by the watcher.
func (s *Service) Touch() {
	s.version.Add(1)
}

// AssetURL returns the locator clients fetch an image from.
func (s *Service) AssetURL(path string) string {
	return gallery.AssetURL(s.opts.AssetBaseURL, path)
}

// ImagePaths returns every indexed image in path order. Images whose
// dimensions are unknown carry zero Width and Height.
func (s *Service) ImagePaths(ctx context.Context) ([]gallery.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, _, err := s.db.ListImages(index.ListQuery{})
	if err != nil {
		return nil, err
	}
	out := make([]gallery.ImageRecord, len(rows))
	for i, r := range rows {
		out[i] = gallery.ImageRecord{Path: r.Path, Width: float64(r.Width), Height: float64(r.Height)}
	}
	return out, nil
}

// Probe reads the dimensions of the given images concurrently. A file that
// already failed is not opened again until its fingerprint changes.
func (s *Service) Probe(ctx context.Context, paths []string) (map[string]probe.Result, error) {
	out := make(map[string]probe.Result, len(paths))
	fingerprints := make(map[string]string, len(paths))
	var pending []string
	for _, p := range paths {
		f, err := s.store.Stat(p)
		if err != nil {
			out[p] = probe.Result{Err: err}
			continue
		}
		if prev, ok := s.failures.Get(p); ok && prev.fingerprint == f.Fingerprint {
			out[p] = probe.Result{Err: prev.err}
			continue
		}
		fingerprints[p] = f.Fingerprint
		pending = append(pending, p)
	}
	if len(pending) == 0 {
		return out, nil
	}

	results, err := probe.All(ctx, pending, s.opts.ProbeConcurrency, func(p string) (io.ReadCloser, error) {
		rc, err := s.store.Open(p)
		if err != nil {
			return nil, err
		}
		return rc, nil
	})
	if err != nil {
		return nil, err
	}
	for p, res := range results {
		out[p] = res
		if res.Err != nil {
			s.failures.Add(p, probeFailure{fingerprint: fingerprints[p], err: res.Err})
		} else {
			s.failures.Remove(p)
		}
	}
	return out, nil
}

// ListImages returns a page of indexed images.
func (s *Service) ListImages(_ context.Context, q index.ListQuery) ([]Image, int, error) {
	rows, total, err := s.db.ListImages(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]Image, len(rows))
	for i, r := range rows {
		items[i] = s.toImage(r)
	}
	return items, total, nil
}

// GetImage returns one indexed image.
func (s *Service) GetImage(_ context.Context, path string) (*Image, error) {
	row, err := s.db.GetImage(path)
	if err != nil {
		return nil, err
	}
	img := s.toImage(*row)
	return &img, nil
}

// Import writes a new image into the library and indexes it.
func (s *Service) Import(_ context.Context, path string, data []byte) (*Image, error) {
	if !s.store.IsImage(path) {
		return nil, fmt.Errorf("%w: extension of %s", ErrUnsupported, path)
	}
	if _, err := s.store.Stat(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if _, _, err := probe.Dimensions(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	row, err := index.IndexFile(s.db, s.store, path)
	if err != nil {
		return nil, err
	}
	s.Touch()
	img := s.toImage(row)
	return &img, nil
}

// Delete removes an image from disk and index.
func (s *Service) Delete(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteImage(path); err != nil {
		return err
	}
	s.Touch()
	return nil
}

// Rescan re-syncs the index with the library on disk.
func (s *Service) Rescan(ctx context.Context) (index.SyncStats, error) {
	stats, err := index.Sync(ctx, s.db, s.store, s.opts.ProbeConcurrency, s.logger)
	if err != nil {
		return stats, err
	}
	if stats.Indexed > 0 || stats.Removed > 0 {
		s.Touch()
	}
	return stats, nil
}

// Layout builds a stateless layout of the whole library. Results are cached
// per library version and geometry.
func (s *Service) Layout(ctx context.Context, mode gallery.Mode, geom gallery.Geometry) (gallery.Layout, error) {
	key := layoutKey{version: s.Version(), mode: mode, geom: geom}
	if l, ok := s.layouts.Get(key); ok {
		return l, nil
	}
	images, err := s.ImagePaths(ctx)
	if err != nil {
		return gallery.Layout{}, fmt.Errorf("%w: %w", apperr.ErrMetadataRetrieval, err)
	}
	l := gallery.Build(mode, images, geom)
	for _, d := range l.Skipped {
		s.logger.Debug("layout: skipped image", slog.String("path", d.Path), slog.String("error", d.Error()))
	}
	s.layouts.Add(key, l)
	return l, nil
}

func (s *Service) toImage(r index.ImageRow) Image {
	return Image{
		Path:    r.Path,
		Width:   r.Width,
		Height:  r.Height,
		Size:    r.Size,
		URL:     s.AssetURL(r.Path),
		ModTime: r.ModTime,
	}
}
