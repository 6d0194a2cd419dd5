package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrUnavailable indicates the backing store could not be reached or
	// failed mid-write. Callers may retry once at the transport layer.
	ErrUnavailable = errors.New("repository: storage unavailable")
)
