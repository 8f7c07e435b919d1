// Package storage defines the image library file-system abstraction.
package storage

import (
	"io"

	"github.com/starford/mosaic/internal/models"
)

// Provider is the interface for image library file operations.
type Provider interface {
	// List returns every image file under dir (relative to the library root).
	List(dir string) ([]models.ImageFile, error)
	// Stat returns the listing entry for a single image.
	Stat(path string) (models.ImageFile, error)
	// Open opens the image at path for reading.
	Open(path string) (io.ReadSeekCloser, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the image at path.
	Delete(path string) error
	// IsImage reports whether path carries an accepted image extension.
	IsImage(path string) bool
}
