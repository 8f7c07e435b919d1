package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mosaic/internal/controller"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/library"
	"github.com/starford/mosaic/internal/storage"
	"github.com/starford/mosaic/internal/testutil"
)

type testEnv struct {
	lib      *library.Service
	sessions *controller.Registry
	store    *storage.FS
	dir      string
	router   http.Handler
}

var testGeometry = gallery.Geometry{TargetRowHeight: 100, Gap: 0, GridCell: 100}

// newEnv sets up a temp library, SQLite DB, service, registry, and router.
// A non-empty token enables token auth.
func newEnv(t *testing.T, token string, sseHandler http.Handler) *testEnv {
	t.Helper()
	dir, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	logger := testutil.Logger()

	lib := library.NewService(store, db, library.Options{AssetBaseURL: "http://asset.localhost"}, logger)
	sessions := controller.NewRegistry(lib, lib, controller.Settings{
		Mode:            gallery.ModeLoose,
		TargetRowHeight: testGeometry.TargetRowHeight,
		GridCell:        testGeometry.GridCell,
		AssetBaseURL:    "http://asset.localhost",
	}, logger)
	t.Cleanup(sessions.Close)

	router := NewRouter(lib, sessions, Options{
		AuthEnabled: token != "",
		Token:       token,
		Geometry:    testGeometry,
	}, sseHandler)
	return &testEnv{lib: lib, sessions: sessions, store: store, dir: dir, router: router}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte, dir string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if dir != "" {
		_ = mw.WriteField("dir", dir)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func eventually(t *testing.T, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestImportAndGetImage(t *testing.T) {
	env := newEnv(t, "", nil)

	w := env.upload(t, "beach.png", testutil.PNG(t, 40, 20), "trips")
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	img := decode[Image](t, w)
	if img.Path != "trips/beach.png" || img.Width != 40 || img.URL != "http://asset.localhost/trips/beach.png" {
		t.Errorf("image = %+v", img)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "trips", "beach.png")); err != nil {
		t.Errorf("file not on disk: %v", err)
	}

	w = env.do(t, http.MethodGet, "/images/trips%2Fbeach.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/images?q=beach", nil)
	list := decode[ImageListResponse](t, w)
	if list.Total != 1 || len(list.Images) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestImport_Errors(t *testing.T) {
	env := newEnv(t, "", nil)

	if w := env.upload(t, "a.png", testutil.PNG(t, 2, 2), ""); w.Code != http.StatusCreated {
		t.Fatalf("first import = %d", w.Code)
	}
	if w := env.upload(t, "a.png", testutil.PNG(t, 2, 2), ""); w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", w.Code)
	}
	if w := env.upload(t, "doc.txt", []byte("hello"), ""); w.Code != http.StatusBadRequest {
		t.Errorf("text file = %d, want 400", w.Code)
	}
	if w := env.upload(t, "fake.png", []byte("fake-png-data"), ""); w.Code != http.StatusBadRequest {
		t.Errorf("undecodable = %d, want 400", w.Code)
	}
	if w := env.upload(t, "../../escape.png", testutil.PNG(t, 2, 2), ""); w.Code == http.StatusCreated {
		if _, err := os.Stat(filepath.Join(env.dir, "escape.png")); err != nil {
			t.Errorf("traversal name not flattened into the library")
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/images", strings.NewReader("x"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=nope")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file field = %d, want 400", w.Code)
	}
}

func TestDeleteImage(t *testing.T) {
	env := newEnv(t, "", nil)
	env.upload(t, "a.png", testutil.PNG(t, 2, 2), "")

	if w := env.do(t, http.MethodDelete, "/images/a.png", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/images/a.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/images/a.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", w.Code)
	}
}

func TestRescan(t *testing.T) {
	env := newEnv(t, "", nil)
	_ = env.store.Write("dropped-in.png", testutil.PNG(t, 3, 3))

	w := env.do(t, http.MethodPost, "/rescan", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rescan = %d", w.Code)
	}
	if got := decode[RescanResponse](t, w); got.Indexed != 1 {
		t.Errorf("rescan = %+v", got)
	}
}

func TestLayoutEndpoint(t *testing.T) {
	env := newEnv(t, "", nil)
	env.upload(t, "a.png", testutil.PNG(t, 200, 100), "")
	env.upload(t, "b.png", testutil.PNG(t, 100, 100), "")
	env.upload(t, "c.png", testutil.PNG(t, 100, 100), "")

	w := env.do(t, http.MethodGet, "/layout?width=300", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("layout = %d %s", w.Code, w.Body.String())
	}
	l := decode[LayoutResponse](t, w)
	if l.Mode != gallery.ModeLoose || len(l.Rows) != 2 || len(l.Rows[0].Tiles) != 2 {
		t.Errorf("loose layout = %+v", l)
	}

	l = decode[LayoutResponse](t, env.do(t, http.MethodGet, "/layout?mode=grid&width=300", nil))
	if len(l.Rows) != 1 || len(l.Rows[0].Tiles) != 3 {
		t.Errorf("grid layout = %+v", l)
	}

	l = decode[LayoutResponse](t, env.do(t, http.MethodGet, "/layout", nil))
	if len(l.Rows) != 0 {
		t.Errorf("zero width produced %d rows", len(l.Rows))
	}

	for _, q := range []string{"mode=masonry", "width=-5", "gap=abc", "width=NaN", "width=Inf", "row_height=-Inf", "cell=nan"} {
		if w := env.do(t, http.MethodGet, "/layout?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", q, w.Code)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newEnv(t, "", nil)
	env.upload(t, "a.png", testutil.PNG(t, 200, 100), "")
	env.upload(t, "b.png", testutil.PNG(t, 100, 100), "")

	w := env.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Width: 300, Height: 250})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	sess := decode[SessionResponse](t, w)
	base := "/sessions/" + sess.ID

	eventually(t, func() bool {
		st := decode[SessionResponse](t, env.do(t, http.MethodGet, base, nil)).State
		return !st.Loading && st.ImageCount == 2
	}, "session never loaded")

	view := decode[controller.View](t, env.do(t, http.MethodGet, base+"/render?scroll=0", nil))
	if view.TotalRows != 1 || len(view.Rows) != 1 || len(view.Rows[0].Items) != 2 {
		t.Fatalf("view = %+v", view)
	}
	if view.Rows[0].Items[0].URL != "http://asset.localhost/a.png" {
		t.Errorf("url = %q", view.Rows[0].Items[0].URL)
	}

	w = env.do(t, http.MethodPut, base+"/viewport", ViewportRequest{Width: 150, Height: 250})
	if w.Code != http.StatusOK || decode[SessionResponse](t, w).State.ContainerWidth != 150 {
		t.Fatalf("resize = %d %s", w.Code, w.Body.String())
	}
	view = decode[controller.View](t, env.do(t, http.MethodGet, base+"/render", nil))
	if view.TotalRows != 2 {
		t.Errorf("rows after resize = %d, want 2", view.TotalRows)
	}

	w = env.do(t, http.MethodPut, base+"/mode", ModeRequest{Mode: "grid"})
	if w.Code != http.StatusOK || decode[SessionResponse](t, w).State.Mode != gallery.ModeGrid {
		t.Fatalf("mode = %d %s", w.Code, w.Body.String())
	}
	for _, q := range []string{"scroll=NaN", "scroll=Inf", "height=NaN", "height=-Inf"} {
		if w := env.do(t, http.MethodGet, base+"/render?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("render %s = %d, want 400", q, w.Code)
		}
	}
	if w := env.do(t, http.MethodPut, base+"/mode", ModeRequest{Mode: "tiles"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad mode = %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, base+"/render", nil); w.Code != http.StatusNotFound {
		t.Errorf("render after delete = %d", w.Code)
	}
}

func TestSessionReloadsAfterImport(t *testing.T) {
	env := newEnv(t, "", nil)
	sess := decode[SessionResponse](t, env.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Width: 500}))
	base := "/sessions/" + sess.ID

	env.upload(t, "new.png", testutil.PNG(t, 10, 10), "")
	eventually(t, func() bool {
		return decode[SessionResponse](t, env.do(t, http.MethodGet, base, nil)).State.ImageCount == 1
	}, "import did not reach the mounted session")
}

func TestCreateSession_Validation(t *testing.T) {
	env := newEnv(t, "", nil)
	for _, body := range []any{
		CreateSessionRequest{Width: -1},
		CreateSessionRequest{Mode: "cards"},
		"not an object",
	} {
		if w := env.do(t, http.MethodPost, "/sessions", body); w.Code != http.StatusBadRequest {
			t.Errorf("%v = %d, want 400", body, w.Code)
		}
	}
	if env.sessions.Count() != 0 {
		t.Errorf("sessions leaked: %d", env.sessions.Count())
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newEnv(t, "secret", nil)
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer secret", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"scheme", "Basic secret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/images", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	// Minimal SSE handler stub: writes headers and blocks until context done.
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		<-r.Context().Done()
	})
	env := newEnv(t, "tok", stub)

	w := env.do(t, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d", w.Code)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	req = httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx2)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/events?access_token=nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE with wrong query token = %d, want 401", w.Code)
	}
}

func TestAssetHandler(t *testing.T) {
	env := newEnv(t, "", nil)
	data := testutil.PNG(t, 4, 4)
	_ = env.store.Write("trips/beach day.png", data)
	_ = os.WriteFile(filepath.Join(env.dir, "secret.txt"), []byte("x"), 0o644)

	r := chi.NewRouter()
	r.Get("/asset/*", NewAssetHandler(env.store).ServeHTTP)

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	w := get("/asset/trips/beach%20day.png")
	if w.Code != http.StatusOK {
		t.Fatalf("asset = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), data) || w.Header().Get("Content-Type") != "image/png" {
		t.Errorf("served %d bytes as %q", w.Body.Len(), w.Header().Get("Content-Type"))
	}

	if w := get("/asset/missing.png"); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d", w.Code)
	}
	if w := get("/asset/secret.txt"); w.Code != http.StatusNotFound {
		t.Errorf("non-image = %d", w.Code)
	}
	if w := get("/asset/..%2F..%2Fetc%2Fpasswd.png"); w.Code == http.StatusOK {
		t.Errorf("traversal served")
	}
}
