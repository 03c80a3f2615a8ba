package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// PersonID is a UUID-based identifier for Person
type PersonID string

// NewPersonID generates a new UUID v4 PersonID
func NewPersonID() PersonID {
	return PersonID(uuid.New().String())
}

// String returns the string representation of PersonID
func (x PersonID) String() string {
	return string(x)
}

// Validate checks if the PersonID is valid
func (x PersonID) Validate() error {
	if x == "" {
		return goerr.New("person ID cannot be empty")
	}
	return nil
}

// Person represents a registered individual whose attendance is tracked.
// The face encodings belonging to a person live in FaceSample entries.
type Person struct {
	ID         PersonID
	Name       string
	Department string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PersonStats summarizes a person's enrolled reference encodings: how many
// there are and how far they scatter around their element-wise mean. A
// large spread usually points at a mislabeled sample.
type PersonStats struct {
	Samples    int
	MeanSpread float64 // mean distance of the samples from their centroid
	MaxSpread  float64
}

// Validate checks the required fields of the person
func (x *Person) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid person")
	}
	if x.Name == "" {
		return goerr.New("person name is required", goerr.V("id", x.ID))
	}
	return nil
}
