package persistence

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("persistence: not found")

	// ErrConstraintViolation indicates invalid or conflicting entity data.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
