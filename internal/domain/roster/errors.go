package roster

import "errors"

// Sentinel kinds for roster errors.
var (
	ErrUnknownPlayer   = errors.New("player not found")
	ErrUnknownActivity = errors.New("activity not found")
	ErrInvalid         = errors.New("invalid roster entry")
)
