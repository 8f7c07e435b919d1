package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidMode   = errors.New("invalid layout mode")

	// ErrMetadataRetrieval wraps failures of the image metadata source.
	// The gallery treats it as an empty library.
	ErrMetadataRetrieval = errors.New("metadata retrieval failed")

	// ErrStaleUpdate marks an async result that arrived after teardown or
	// after a newer load superseded it. It is dropped, never surfaced.
	ErrStaleUpdate = errors.New("stale update")
)
