package model

import "github.com/m-mizutani/goerr/v2"

// Domain errors shared across the matching and enrollment paths
var (
	// ErrInvalidEncoding marks registrations rejected by the gallery:
	// empty vectors, non-finite components, or a dimension that conflicts
	// with the one fixed by the first registration.
	ErrInvalidEncoding = goerr.New("invalid encoding")

	// ErrDimensionMismatch marks probe vectors whose length differs from
	// the gallery dimension. It is never returned by an empty gallery.
	ErrDimensionMismatch = goerr.New("encoding dimension mismatch")
)
