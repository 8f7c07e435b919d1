// Package models defines the domain types for Mosaic.
package models

import "time"

// ImageFile is a lightweight representation of an image on disk, returned by
// storage list operations.
type ImageFile struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Fingerprint string    `json:"fingerprint"`
	ModTime     time.Time `json:"mod_time"`
}
