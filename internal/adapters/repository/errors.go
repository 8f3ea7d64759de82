package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
	// ErrPersistence marks a failed port call. The caller's in-memory state
	// may already reflect the change.
	ErrPersistence = errors.New("persistence failed")
)

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
