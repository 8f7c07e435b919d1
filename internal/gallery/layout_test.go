package gallery

import (
	"errors"
	"testing"

	"github.com/starford/mosaic/internal/apperr"
)

func TestBuild_ZeroWidthIsEmpty(t *testing.T) {
	images := []ImageRecord{img("a.jpg", 10, 10)}
	for _, m := range []Mode{ModeGrid, ModeLoose} {
		l := Build(m, images, Geometry{TargetRowHeight: 200, GridCell: 100})
		if len(l.Rows) != 0 || l.Height != 0 {
			t.Errorf("%s: rows = %d height = %v", m, len(l.Rows), l.Height)
		}
		if w := l.Window(0, 500, 1); w.Len() != 0 {
			t.Errorf("%s: window = %+v", m, w)
		}
	}
}

func TestBuild_GridRows(t *testing.T) {
	var images []ImageRecord
	for range 7 {
		images = append(images, img("g.jpg", 300, 100))
	}
	l := Build(ModeGrid, images, Geometry{ContainerWidth: 650, GridCell: 200, Gap: 10})
	// (650+10)/(200+10) = 3 columns.
	if len(l.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(l.Rows))
	}
	if len(l.Rows[2].Tiles) != 1 {
		t.Errorf("last grid row tiles = %d, want 1", len(l.Rows[2].Tiles))
	}
	if l.Height != 3*200+2*10 {
		t.Errorf("height = %v", l.Height)
	}
	if w := l.Window(0, 200, 0); w != (VisibleRange{0, 1}) {
		t.Errorf("window = %+v", w)
	}
}

func TestBuild_LooseTops(t *testing.T) {
	images := []ImageRecord{img("a", 400, 200), img("b", 200, 200), img("c", 600, 200)}
	l := Build(ModeLoose, images, Geometry{ContainerWidth: 600, TargetRowHeight: 200, Gap: 0})
	want := []float64{0, 200, 400}
	for i, v := range want {
		if !approx(l.Tops[i], v) {
			t.Errorf("tops[%d] = %v, want %v", i, l.Tops[i], v)
		}
	}
	if w := l.Window(250, 10, 0); w != (VisibleRange{1, 2}) {
		t.Errorf("window = %+v", w)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Loose "); err != nil || m != ModeLoose {
		t.Errorf("ParseMode = %q, %v", m, err)
	}
	if _, err := ParseMode("masonry"); !errors.Is(err, apperr.ErrInvalidMode) {
		t.Errorf("err = %v, want ErrInvalidMode", err)
	}
}

func TestAssetURL(t *testing.T) {
	got := AssetURL("http://asset.localhost/", "Saved Pictures/a#1.png")
	want := "http://asset.localhost/Saved%20Pictures/a%231.png"
	if got != want {
		t.Errorf("AssetURL = %q, want %q", got, want)
	}
}
