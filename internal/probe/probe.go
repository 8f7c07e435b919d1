// Package probe reads intrinsic image dimensions from file headers without
// decoding pixel data.
package probe

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Dimensions returns the pixel width and height declared by an image header.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("probe: decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("probe: %s header declares %dx%d", format, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// OpenFunc opens the image stored at path.
type OpenFunc func(path string) (io.ReadCloser, error)

// Result is the outcome of probing one path.
type Result struct {
	Width  int
	Height int
	Err    error
}

// All probes every path concurrently, at most limit at a time, and waits for
// the whole batch. Per-path failures are reported in the result map; the
// returned error is non-nil only when ctx ends first.
func All(ctx context.Context, paths []string, limit int, open OpenFunc) (map[string]Result, error) {
	out := make(map[string]Result, len(paths))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, p := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			var res Result
			if rc, err := open(p); err != nil {
				res.Err = err
			} else {
				res.Width, res.Height, res.Err = Dimensions(rc)
				_ = rc.Close()
			}
			mu.Lock()
			out[p] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
