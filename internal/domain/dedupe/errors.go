package dedupe

import "errors"

// ErrDuplicate is returned when a request id is still being processed or
// its recorded result no longer exists.
var ErrDuplicate = errors.New("duplicate request")
