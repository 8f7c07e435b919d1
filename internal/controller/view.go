package controller

import (
	"math"

	"github.com/starford/mosaic/internal/gallery"
)

// Item is one materialized image of a rendered row.
type Item struct {
	Path   string  `json:"path"`
	URL    string  `json:"url"`
	X      float64 `json:"x"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RenderedRow is a row inside the visible window.
type RenderedRow struct {
	Index  int     `json:"index"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Items  []Item  `json:"items"`
}

// View is what a client must materialize for one scroll position.
type View struct {
	Mode           gallery.Mode         `json:"mode"`
	ContainerWidth float64              `json:"container_width"`
	TotalHeight    float64              `json:"total_height"`
	TotalRows      int                  `json:"total_rows"`
	ImageCount     int                  `json:"image_count"`
	Loading        bool                 `json:"loading"`
	Range          gallery.VisibleRange `json:"range"`
	Rows           []RenderedRow        `json:"rows"`
}

// Render returns the rows intersecting the viewport. Rows outside the window
// are not materialized, so the cost is independent of the library size.
// Render never mutates layout inputs and may be called on every scroll event.
func (c *Controller) Render(scrollOffset, viewportHeight float64) (View, error) {
	var v View
	err := c.do(func(s *state) {
		l := c.layout(s)
		v = View{
			Mode:           s.mode,
			ContainerWidth: s.width,
			TotalHeight:    l.Height,
			TotalRows:      len(l.Rows),
			ImageCount:     len(s.images),
			Loading:        s.loading,
			Rows:           []RenderedRow{},
		}
		v.Range = l.Window(scrollOffset, viewportHeight, c.settings.Overscan)
		for i := v.Range.Start; i < v.Range.End; i++ {
			v.Rows = append(v.Rows, c.renderRow(l, i))
		}
	})
	return v, err
}

func (c *Controller) renderRow(l *gallery.Layout, i int) RenderedRow {
	row := l.Rows[i]
	out := RenderedRow{
		Index:  i,
		Top:    l.Tops[i],
		Height: round2(row.Height),
		Items:  make([]Item, len(row.Tiles)),
	}
	var x float64
	for j, t := range row.Tiles {
		out.Items[j] = Item{
			Path:   t.Image.Path,
			URL:    gallery.AssetURL(c.settings.AssetBaseURL, t.Image.Path),
			X:      round2(x),
			Width:  round2(t.Width),
			Height: round2(row.Height),
		}
		x += t.Width + row.Gap
	}
	return out
}

// round2 trims layout numbers to 1/100 px for the wire.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
