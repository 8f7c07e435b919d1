package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mosaic/internal/controller"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/index"
	"github.com/starford/mosaic/internal/library"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Handler holds API route handlers.
type Handler struct {
	lib      *library.Service
	sessions *controller.Registry
	opts     Options
}

// NewHandler creates a new Handler.
func NewHandler(lib *library.Service, sessions *controller.Registry, opts Options) *Handler {
	if opts.DefaultMode == "" {
		opts.DefaultMode = gallery.ModeLoose
	}
	return &Handler{lib: lib, sessions: sessions, opts: opts}
}

// imagePath extracts the image path from the URL (everything after /images/).
// Supports encoded slashes (e.g. trips%2Fbeach.jpg).
func imagePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// libraryChanged refreshes every mounted gallery after an API mutation.
func (h *Handler) libraryChanged() {
	if h.sessions != nil {
		h.sessions.ReloadAll()
	}
}

// ListImages handles GET /api/images.
//
//	@Summary	List indexed images
//	@Tags		images
//	@Param		limit	query	int		false	"Page size"
//	@Param		offset	query	int		false	"Page offset"
//	@Param		q		query	string	false	"Path substring"
//	@Param		sort	query	string	false	"Sort field"	Enums(path, mod_time)
//	@Success	200		{object}	ImageListResponse
//	@Router		/images [get]
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.lib.ListImages(r.Context(), index.ListQuery{
		Limit:  limit,
		Offset: offset,
		Query:  q.Get("q"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		writeError(w, "list images", err)
		return
	}
	if items == nil {
		items = []Image{}
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Images: items, Total: total})
}

// GetImage handles GET /api/images/*.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	p := imagePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	img, err := h.lib.GetImage(r.Context(), p)
	if err != nil {
		writeError(w, "get image", err, slog.String("path", p))
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// ImportImage handles POST /api/images (multipart/form-data, field "file",
// optional field "dir").
func (h *Handler) ImportImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := path.Base(header.Filename)
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid filename"))
		return
	}
	dest := name
	if dir := strings.Trim(r.FormValue("dir"), "/"); dir != "" {
		dest = dir + "/" + name
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	img, err := h.lib.Import(r.Context(), dest, data)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
		case errors.Is(err, library.ErrUnsupported):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		default:
			writeError(w, "import image", err, slog.String("path", dest))
		}
		return
	}
	h.libraryChanged()
	writeJSON(w, http.StatusCreated, img)
}

// DeleteImage handles DELETE /api/images/*.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	p := imagePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.lib.Delete(r.Context(), p); err != nil {
		writeError(w, "delete image", err, slog.String("path", p))
		return
	}
	h.libraryChanged()
	w.WriteHeader(http.StatusNoContent)
}

// Rescan handles POST /api/rescan.
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	stats, err := h.lib.Rescan(r.Context())
	if err != nil {
		writeError(w, "rescan", err)
		return
	}
	if stats.Indexed > 0 || stats.Removed > 0 {
		h.libraryChanged()
	}
	writeJSON(w, http.StatusOK, RescanResponse(stats))
}

// Layout handles GET /api/layout?mode=&width=&row_height=&gap=&cell=.
//
// The layout covers the whole library and is not bound to a session.
func (h *Handler) Layout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode := h.opts.DefaultMode
	if s := q.Get("mode"); s != "" {
		m, err := gallery.ParseMode(s)
		if err != nil {
			writeError(w, "layout", err)
			return
		}
		mode = m
	}

	geom := h.opts.Geometry
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"width", &geom.ContainerWidth},
		{"row_height", &geom.TargetRowHeight},
		{"gap", &geom.Gap},
		{"cell", &geom.GridCell},
	} {
		v, err := floatParam(q.Get(p.name), *p.dst)
		if err != nil || v < 0 || v > maxDimension {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid "+p.name))
			return
		}
		*p.dst = v
	}

	l, err := h.lib.Layout(r.Context(), mode, geom)
	if err != nil {
		writeError(w, "layout", err)
		return
	}
	resp := LayoutResponse{
		Mode:           l.Mode,
		ContainerWidth: l.ContainerWidth,
		Height:         l.Height,
		Rows:           l.Rows,
		Version:        h.lib.Version(),
	}
	if resp.Rows == nil {
		resp.Rows = []gallery.Row{}
	}
	for _, s := range l.Skipped {
		resp.Skipped = append(resp.Skipped, s.Path)
	}
	writeJSON(w, http.StatusOK, resp)
}
