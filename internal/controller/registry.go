package controller

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mosaic/internal/apperr"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/viewport"
)

// Session is one mounted gallery.
type Session struct {
	ID         string
	Controller *Controller
	Host       *viewport.Host
	CreatedAt  time.Time
}

// Registry tracks the mounted galleries of a server.
type Registry struct {
	source   MetadataSource
	prober   DimensionProber
	settings Settings
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates an empty registry whose sessions share source, prober
// and default settings.
func NewRegistry(source MetadataSource, prober DimensionProber, settings Settings, logger *slog.Logger) *Registry {
	return &Registry{
		source:   source,
		prober:   prober,
		settings: settings,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create mounts a new gallery with the given container size. An empty mode
// keeps the default.
func (r *Registry) Create(size viewport.Size, mode string) (*Session, error) {
	settings := r.settings
	if mode != "" {
		m, err := gallery.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		settings.Mode = m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("controller: registry closed")
	}

	id := uuid.NewString()
	sess := &Session{
		ID:         id,
		Controller: New(r.source, r.prober, settings, r.logger.With(slog.String("session", id))),
		Host:       viewport.NewHost(size),
		CreatedAt:  time.Now(),
	}
	if err := sess.Controller.Mount(sess.Host); err != nil {
		sess.Controller.Unmount()
		return nil, err
	}
	r.sessions[sess.ID] = sess
	r.logger.Info("session mounted", slog.String("session", sess.ID), slog.Float64("width", size.Width))
	return sess, nil
}

// Get returns a mounted session or apperr.ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return sess, nil
}

// Remove unmounts and forgets a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return apperr.ErrNotFound
	}
	sess.Controller.Unmount()
	r.logger.Info("session unmounted", slog.String("session", id))
	return nil
}

// Count returns the number of mounted sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ReloadAll asks every mounted gallery to refetch its image list.
func (r *Registry) ReloadAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Controller.Reload()
	}
}

// Close unmounts every session. Later Create calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Controller.Unmount()
	}
}
