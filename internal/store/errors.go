package store

import "errors"

// Error kinds. Backends wrap these with context; match with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrEncoding = errors.New("encoding error")
	ErrInternal = errors.New("internal error")
)
