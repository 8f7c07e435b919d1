package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mosaic/internal/controller"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/viewport"
)

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*controller.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, "get session", err, slog.String("session", id))
		return nil, false
	}
	return sess, true
}

func (h *Handler) sessionResponse(w http.ResponseWriter, status int, sess *controller.Session) {
	st, err := sess.Controller.State()
	if err != nil {
		writeError(w, "session state", err, slog.String("session", sess.ID))
		return
	}
	writeJSON(w, status, SessionResponse{ID: sess.ID, CreatedAt: sess.CreatedAt, State: st})
}

// CreateSession handles POST /api/sessions. It mounts a gallery and starts
// loading the library into it.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.sessions.Create(viewport.Size{Width: req.Width, Height: req.Height}, req.Mode)
	if err != nil {
		writeError(w, "create session", err)
		return
	}
	h.sessionResponse(w, http.StatusCreated, sess)
}

// GetSession handles GET /api/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.sessionResponse(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Remove(id); err != nil {
		writeError(w, "delete session", err, slog.String("session", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResizeSession handles PUT /api/sessions/{id}/viewport. The new width is
// applied before the response is written.
func (h *Handler) ResizeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ViewportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess.Host.Resize(viewport.Size{Width: req.Width, Height: req.Height})
	if err := sess.Controller.SetWidth(sess.Host.Size().Width); err != nil {
		writeError(w, "resize session", err, slog.String("session", sess.ID))
		return
	}
	h.sessionResponse(w, http.StatusOK, sess)
}

// SetSessionMode handles PUT /api/sessions/{id}/mode.
func (h *Handler) SetSessionMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := sess.Controller.SetMode(gallery.Mode(req.Mode)); err != nil {
		writeError(w, "set mode", err, slog.String("session", sess.ID))
		return
	}
	h.sessionResponse(w, http.StatusOK, sess)
}

// RenderSession handles GET /api/sessions/{id}/render?scroll=&height=.
// A missing height falls back to the last reported viewport height.
func (h *Handler) RenderSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	scroll, err := floatParam(q.Get("scroll"), 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid scroll"))
		return
	}
	height, err := floatParam(q.Get("height"), sess.Host.Size().Height)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid height"))
		return
	}

	view, err := sess.Controller.Render(scroll, height)
	if err != nil {
		writeError(w, "render", err, slog.String("session", sess.ID))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

var errNotFinite = errors.New("not a finite number")

// floatParam parses a query value, rejecting NaN and infinities.
func floatParam(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}
