// Package controller holds the layout state of a mounted gallery: the active
// mode, the image list, the measured container width, and the rows derived
// from them.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/mosaic/internal/apperr"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/probe"
	"github.com/starford/mosaic/internal/viewport"
)

// MetadataSource lists the images of a gallery. Records with unknown
// dimensions carry zero Width and Height.
type MetadataSource interface {
	ImagePaths(ctx context.Context) ([]gallery.ImageRecord, error)
}

// DimensionProber resolves the dimensions of images the source could not.
type DimensionProber interface {
	Probe(ctx context.Context, paths []string) (map[string]probe.Result, error)
}

// Settings configures the geometry of a gallery.
type Settings struct {
	Mode            gallery.Mode
	TargetRowHeight float64
	Gap             float64
	GridCell        float64
	Overscan        int
	AssetBaseURL    string
}

type state struct {
	mode    gallery.Mode
	images  []gallery.ImageRecord
	width   float64
	loading bool
	// generation identifies the latest metadata load; older results are stale.
	generation uint64
	layouts    map[gallery.Mode]*gallery.Layout
}

// invalidate drops derived rows after the image list or width changed.
func (s *state) invalidate() {
	clear(s.layouts)
}

// Controller owns the state of one mounted gallery.
//
// Concurrency model: a single event loop goroutine owns the state. Viewport
// notifications, metadata loads, and API calls reach it through the ops
// channel, so state is only ever touched from one goroutine.
type Controller struct {
	source   MetadataSource
	prober   DimensionProber
	settings Settings
	logger   *slog.Logger

	ops     chan func(*state)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // guards mounted and sub
	mounted bool
	sub     *viewport.Subscription
}

// New creates a controller and starts its event loop. The gallery shows
// nothing until Mount attaches a viewport and loads metadata.
func New(source MetadataSource, prober DimensionProber, settings Settings, logger *slog.Logger) *Controller {
	if settings.Mode == "" {
		settings.Mode = gallery.ModeLoose
	}
	c := &Controller{
		source:   source,
		prober:   prober,
		settings: settings,
		logger:   logger,
		ops:      make(chan func(*state)),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)

	s := &state{
		mode:    c.settings.Mode,
		layouts: make(map[gallery.Mode]*gallery.Layout, 2),
	}
	for {
		select {
		case <-c.stopCh:
			return
		case op := <-c.ops:
			op(s)
		}
	}
}

// do runs fn on the event loop and waits for it. It returns ErrStaleUpdate
// once the controller has been unmounted.
func (c *Controller) do(fn func(*state)) error {
	if c.closed.Load() {
		return apperr.ErrStaleUpdate
	}
	done := make(chan struct{})
	select {
	case c.ops <- func(s *state) { fn(s); close(done) }:
	case <-c.stopped:
		return apperr.ErrStaleUpdate
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return apperr.ErrStaleUpdate
	}
}

// Mount attaches the gallery to its container and starts the first metadata
// load. The initial container width is applied before Mount returns.
func (c *Controller) Mount(src viewport.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return apperr.ErrStaleUpdate
	}
	if c.mounted {
		return errors.New("controller: already mounted")
	}
	initial := src.Size().Width
	if err := c.do(func(s *state) { s.setWidth(initial) }); err != nil {
		return err
	}
	c.mounted = true
	c.sub = viewport.Observe(c.ctx, src, c.onWidth)
	c.Reload()
	return nil
}

// Unmount cancels the size observation and any in-flight loads, then stops
// the event loop. Results that arrive afterwards are dropped.
func (c *Controller) Unmount() {
	if !c.closed.CompareAndSwap(false, true) {
		<-c.stopped
		return
	}
	c.cancel()
	c.mu.Lock()
	if c.sub != nil {
		c.sub.Close()
	}
	c.mu.Unlock()
	close(c.stopCh)
	<-c.stopped
}

func (c *Controller) onWidth(w float64) {
	if err := c.do(func(s *state) { s.setWidth(w) }); err != nil {
		c.logger.Debug("controller: width update dropped", slog.Float64("width", w))
	}
}

func (s *state) setWidth(w float64) {
	if w == s.width {
		return
	}
	s.width = w
	s.invalidate()
}

// SetWidth applies a container width directly, bypassing the viewport.
func (c *Controller) SetWidth(w float64) error {
	if !(w >= 0) {
		w = 0
	}
	return c.do(func(s *state) { s.setWidth(w) })
}

// SetMode switches the layout mode. The image list is kept.
func (c *Controller) SetMode(mode gallery.Mode) error {
	if mode != gallery.ModeGrid && mode != gallery.ModeLoose {
		return fmt.Errorf("%w: %q", apperr.ErrInvalidMode, mode)
	}
	return c.do(func(s *state) { s.mode = mode })
}

// Reload fetches the image list again. Only the most recent reload may
// publish its result; earlier ones still in flight become stale.
func (c *Controller) Reload() {
	var gen uint64
	if err := c.do(func(s *state) {
		s.generation++
		gen = s.generation
		s.loading = true
	}); err != nil {
		return
	}
	ctx := c.ctx

	go func() {
		images := c.fetch(ctx)

		stale := false
		err := c.do(func(s *state) {
			if gen != s.generation {
				stale = true
				return
			}
			s.images = images
			s.loading = false
			s.invalidate()
		})
		if err != nil || stale {
			c.logger.Debug("controller: dropped stale load",
				slog.Uint64("generation", gen),
				slog.String("error", apperr.ErrStaleUpdate.Error()))
		}
	}()
}

// fetch retrieves the image list and probes every image lacking dimensions,
// waiting for the whole batch. Failures degrade to fewer or zero images.
func (c *Controller) fetch(ctx context.Context) []gallery.ImageRecord {
	images, err := c.source.ImagePaths(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("controller: metadata retrieval failed",
				slog.String("error", fmt.Errorf("%w: %w", apperr.ErrMetadataRetrieval, err).Error()))
		}
		return nil
	}

	var missing []string
	for _, img := range images {
		if img.Width <= 0 || img.Height <= 0 {
			missing = append(missing, img.Path)
		}
	}
	if len(missing) == 0 || c.prober == nil {
		return images
	}

	results, err := c.prober.Probe(ctx, missing)
	if err != nil {
		return nil
	}
	for i := range images {
		res, ok := results[images[i].Path]
		if !ok {
			continue
		}
		if res.Err != nil {
			c.logger.Warn("controller: probe failed", slog.String("path", images[i].Path), slog.String("error", res.Err.Error()))
			continue
		}
		images[i].Width, images[i].Height = float64(res.Width), float64(res.Height)
	}
	return images
}

// State is a snapshot of the controller.
type State struct {
	Mode           gallery.Mode `json:"mode"`
	ContainerWidth float64      `json:"container_width"`
	ImageCount     int          `json:"image_count"`
	Loading        bool         `json:"loading"`
}

// State returns the current mode, width, and load status.
func (c *Controller) State() (State, error) {
	var st State
	err := c.do(func(s *state) {
		st = State{Mode: s.mode, ContainerWidth: s.width, ImageCount: len(s.images), Loading: s.loading}
	})
	return st, err
}

// Images returns a copy of the current image list.
func (c *Controller) Images() ([]gallery.ImageRecord, error) {
	var out []gallery.ImageRecord
	err := c.do(func(s *state) { out = append([]gallery.ImageRecord(nil), s.images...) })
	return out, err
}

// Rows returns the rows of the active mode, computing them if the inputs
// changed since they were last built.
func (c *Controller) Rows() ([]gallery.Row, error) {
	var rows []gallery.Row
	err := c.do(func(s *state) { rows = c.layout(s).Rows })
	return rows, err
}

func (c *Controller) layout(s *state) *gallery.Layout {
	if l, ok := s.layouts[s.mode]; ok {
		return l
	}
	l := gallery.Build(s.mode, s.images, gallery.Geometry{
		ContainerWidth:  s.width,
		TargetRowHeight: c.settings.TargetRowHeight,
		Gap:             c.settings.Gap,
		GridCell:        c.settings.GridCell,
	})
	for _, d := range l.Skipped {
		c.logger.Warn("controller: image excluded from layout", slog.String("path", d.Path), slog.String("error", d.Error()))
	}
	s.layouts[s.mode] = &l
	return &l
}
