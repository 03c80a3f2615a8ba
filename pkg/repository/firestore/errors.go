package firestore

import "github.com/seiyo-lab/kaoban/pkg/domain/interfaces"

// Sentinel errors of the Firestore backend, shared through the interfaces
// package so callers can branch without importing this backend.
var (
	// ErrNotFound is returned when a requested document does not exist
	ErrNotFound = interfaces.ErrNotFound

	// ErrAlreadyExists is returned when creating a document whose natural
	// key is already taken
	ErrAlreadyExists = interfaces.ErrAlreadyExists
)
