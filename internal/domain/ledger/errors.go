package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("event not found")
)
