// Package gallery implements the layout core: justified row packing, the
// uniform grid arrangement, and the virtualized row window.
package gallery

import (
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/starford/mosaic/internal/apperr"
)

// Mode selects how a gallery arranges its images.
type Mode string

// Layout modes.
const (
	ModeGrid  Mode = "grid"
	ModeLoose Mode = "loose"
)

// ParseMode converts a user-supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeGrid, ModeLoose:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidMode, s)
}

// ImageRecord is an image identifier with its intrinsic pixel size.
type ImageRecord struct {
	Path   string  `json:"path"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DegenerateImageError reports an image whose dimensions cannot yield an
// aspect ratio. Such images are left out of a layout; the rest proceed.
type DegenerateImageError struct {
	Path   string
	Width  float64
	Height float64
}

func (e *DegenerateImageError) Error() string {
	return fmt.Sprintf("gallery: degenerate image %q (%gx%g)", e.Path, e.Width, e.Height)
}

// AspectRatio returns width divided by height.
func (r ImageRecord) AspectRatio() (float64, error) {
	if !(r.Height > 0) || !(r.Width > 0) || math.IsInf(r.Width, 0) || math.IsInf(r.Height, 0) {
		return 0, &DegenerateImageError{Path: r.Path, Width: r.Width, Height: r.Height}
	}
	return r.Width / r.Height, nil
}

// AssetURL builds the fetchable locator for an image path, e.g.
// http://asset.localhost/holiday/beach.jpg. Each path segment is escaped.
func AssetURL(base, path string) string {
	segs := strings.Split(filepath.ToSlash(path), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}
