package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates the request conflicts with the current state of a record.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable indicates a dependency that may recover on retry.
	ErrUnavailable = errors.New("temporarily unavailable")
)
