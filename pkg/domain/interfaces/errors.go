package interfaces

import "github.com/m-mizutani/goerr/v2"

// Common repository error kinds. Every backend wraps these, so callers can
// branch on absence or key conflicts without importing a concrete backend.
var (
	ErrNotFound      = goerr.New("not found")
	ErrAlreadyExists = goerr.New("already exists")
)
