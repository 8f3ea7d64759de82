package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrServe      = errors.New("http serve failed")
	ErrBadRequest = errors.New("bad request")
)

// NewKind tags op with an error kind.
func NewKind(op string, kind error) error { return fmt.Errorf("%s: %w", op, kind) }

// WrapKind tags op with an error kind and keeps the cause.
func WrapKind(op string, kind, err error) error { return fmt.Errorf("%s: %w: %w", op, kind, err) }
