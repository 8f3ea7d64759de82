package auth

import "errors"

// Sentinel errors for the authorization gate.
var (
	// ErrNotPermitted is returned by Guard when the session cannot edit.
	ErrNotPermitted = errors.New("not permitted")
	// ErrTokenStore wraps failures of the persisted token slot.
	ErrTokenStore = errors.New("token store")
)
