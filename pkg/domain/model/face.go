package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// DefaultEncodingDim is the dimension of face encodings produced by the
// dlib face descriptor model. The gallery does not assume it; the first
// registration fixes the effective dimension at runtime.
const DefaultEncodingDim = 128

// FaceID is a UUID-based identifier for FaceSample
type FaceID string

// NewFaceID generates a new UUID v4 FaceID
func NewFaceID() FaceID {
	return FaceID(uuid.New().String())
}

// String returns the string representation of FaceID
func (x FaceID) String() string {
	return string(x)
}

// Validate checks if the FaceID is valid
func (x FaceID) Validate() error {
	if x == "" {
		return goerr.New("face ID cannot be empty")
	}
	return nil
}

// FaceSample is one reference encoding registered for a person. A person
// may own several samples (different angles, lighting); the matcher takes
// the minimum distance over all of them.
type FaceSample struct {
	ID        FaceID
	PersonID  PersonID
	Encoding  types.Encoding
	Note      string // free-form, e.g. "front", "left profile"
	CreatedAt time.Time
}

// Validate checks the required fields of the face sample
func (x *FaceSample) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid face sample")
	}
	if err := x.PersonID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid face sample", goerr.V("face_id", x.ID))
	}
	if err := x.Encoding.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidEncoding, err.Error(), goerr.V("face_id", x.ID))
	}
	return nil
}
