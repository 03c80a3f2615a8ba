package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrPersonNotFound = errors.New("person not found")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// Context keys for error values
const (
	PersonIDKey = "person_id"
	FaceIDKey   = "face_id"
	TokenIDKey  = "token_id"
)
