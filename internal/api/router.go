package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mosaic/internal/controller"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/library"
)

// Options configures the API router.
type Options struct {
	AuthEnabled bool
	Token       string
	// DefaultMode and Geometry fill parameters missing from GET /layout.
	DefaultMode gallery.Mode
	Geometry    gallery.Geometry
}

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(lib *library.Service, sessions *controller.Registry, opts Options, sseHandler http.Handler) chi.Router {
	h := NewHandler(lib, sessions, opts)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	// Library.
	r.Get("/images", h.ListImages)
	r.Post("/images", h.ImportImage)
	r.Get("/images/*", h.GetImage)
	r.Delete("/images/*", h.DeleteImage)
	r.Post("/rescan", h.Rescan)

	// Stateless layout.
	r.Get("/layout", h.Layout)

	// Mounted galleries.
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Put("/viewport", h.ResizeSession)
			r.Put("/mode", h.SetSessionMode)
			r.Get("/render", h.RenderSession)
		})
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
