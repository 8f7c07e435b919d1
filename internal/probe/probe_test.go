package probe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"testing"

	"golang.org/x/image/bmp"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDimensions_PNG(t *testing.T) {
	w, h, err := Dimensions(bytes.NewReader(encodePNG(t, 40, 30)))
	if err != nil || w != 40 || h != 30 {
		t.Errorf("Dimensions = %d, %d, %v", w, h, err)
	}
}

func TestDimensions_BMP(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 7, 3))
	img.Set(1, 1, color.White)
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	w, h, err := Dimensions(&buf)
	if err != nil || w != 7 || h != 3 {
		t.Errorf("Dimensions = %d, %d, %v", w, h, err)
	}
}

func TestDimensions_Garbage(t *testing.T) {
	if _, _, err := Dimensions(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestAll(t *testing.T) {
	files := map[string][]byte{
		"a.png": encodePNG(t, 200, 100),
		"b.png": encodePNG(t, 10, 10),
		"c.png": []byte("broken"),
	}
	open := func(p string) (io.ReadCloser, error) {
		data, ok := files[p]
		if !ok {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	res, err := All(context.Background(), []string{"a.png", "b.png", "c.png", "missing.png"}, 2, open)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if r := res["a.png"]; r.Err != nil || r.Width != 200 || r.Height != 100 {
		t.Errorf("a.png = %+v", r)
	}
	if r := res["b.png"]; r.Err != nil || r.Width != 10 {
		t.Errorf("b.png = %+v", r)
	}
	if res["c.png"].Err == nil {
		t.Error("c.png should fail")
	}
	if !errors.Is(res["missing.png"].Err, os.ErrNotExist) {
		t.Errorf("missing.png err = %v", res["missing.png"].Err)
	}
}

func TestAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	open := func(string) (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil }
	if _, err := All(ctx, []string{"a", "b"}, 1, open); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
