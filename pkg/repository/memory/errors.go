package memory

import "github.com/seiyo-lab/kaoban/pkg/domain/interfaces"

// Sentinel errors of the in-memory backend, shared with the other backends
// through the interfaces package so callers can branch without knowing
// which backend they talk to.
var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = interfaces.ErrNotFound

	// ErrAlreadyExists is returned when an append would violate a natural
	// key, e.g. a second attendance record for the same (person, date)
	ErrAlreadyExists = interfaces.ErrAlreadyExists
)
