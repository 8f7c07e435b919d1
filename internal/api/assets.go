package api

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mosaic/internal/storage"
)

// AssetHandler serves image bytes from the library. It backs the asset base
// URL that gallery items point at.
type AssetHandler struct {
	store storage.Provider
}

// NewAssetHandler creates a handler reading from store.
func NewAssetHandler(store storage.Provider) *AssetHandler {
	return &AssetHandler{store: store}
}

// ServeHTTP handles GET /asset/*.
func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	name, err := url.PathUnescape(raw)
	if err != nil || name == "" || !h.store.IsImage(name) {
		http.NotFound(w, r)
		return
	}

	info, err := h.store.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
		} else {
			http.Error(w, "invalid path", http.StatusBadRequest)
		}
		return
	}
	f, err := h.store.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("ETag", `"`+info.Fingerprint+`"`)
	http.ServeContent(w, r, path.Base(name), info.ModTime, f)
}
