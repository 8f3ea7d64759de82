package interchange

import "errors"

// Sentinel kinds for interchange errors.
var (
	ErrFormat = errors.New("invalid csv")
)
