package repository

import "fmt"

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend. path is only used by sqlite.
func Open(backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(opts...), nil
	case BackendSQLite:
		return NewSQLiteStore(path, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
