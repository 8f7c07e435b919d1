package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mosaic/internal/controller"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/library"
)

const maxDimension = 1 << 16

var modeRule = validation.In(string(gallery.ModeGrid), string(gallery.ModeLoose)).Error("must be grid or loose")

// Image is the image response type (aliased from the domain layer).
type Image = library.Image

// ImageListResponse wraps paginated image listings.
type ImageListResponse struct {
	Images []Image `json:"images"`
	Total  int     `json:"total"`
}

// RescanResponse reports the outcome of POST /rescan.
type RescanResponse struct {
	Indexed int `json:"indexed"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// CreateSessionRequest mounts a gallery.
type CreateSessionRequest struct {
	Width  float64 `json:"width" example:"1280"`
	Height float64 `json:"height" example:"800"`
	Mode   string  `json:"mode,omitempty" example:"loose"`
}

// Validate implements validation.Validatable.
func (r *CreateSessionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Width, validation.Min(0.0), validation.Max(float64(maxDimension))),
		validation.Field(&r.Height, validation.Min(0.0), validation.Max(float64(maxDimension))),
		validation.Field(&r.Mode, modeRule),
	)
}

// ViewportRequest reports a new container size.
type ViewportRequest struct {
	Width  float64 `json:"width" example:"1024"`
	Height float64 `json:"height" example:"768"`
}

// Validate implements validation.Validatable.
func (r *ViewportRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Width, validation.Min(0.0), validation.Max(float64(maxDimension))),
		validation.Field(&r.Height, validation.Min(0.0), validation.Max(float64(maxDimension))),
	)
}

// ModeRequest switches the layout mode of a session.
type ModeRequest struct {
	Mode string `json:"mode" example:"grid"`
}

// Validate implements validation.Validatable.
func (r *ModeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Mode, validation.Required, modeRule),
	)
}

// SessionResponse describes a mounted gallery.
type SessionResponse struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	State     controller.State `json:"state"`
}

// LayoutResponse is a stateless layout of the whole library.
type LayoutResponse struct {
	Mode           gallery.Mode  `json:"mode"`
	ContainerWidth float64       `json:"container_width"`
	Height         float64       `json:"height"`
	Rows           []gallery.Row `json:"rows"`
	Skipped        []string      `json:"skipped,omitempty"`
	Version        uint64        `json:"version"`
}
