package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// RecordID is a UUID-based identifier for AttendanceRecord
type RecordID string

// NewRecordID generates a new UUID v4 RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// String returns the string representation of RecordID
func (x RecordID) String() string {
	return string(x)
}

// AttendanceRecord is the first confirmed sighting of a person on a
// calendar day. Records are append-only and unique per (PersonID, Date);
// later sightings on the same day never modify them.
type AttendanceRecord struct {
	ID        RecordID
	PersonID  PersonID
	Date      types.DateKey
	ArrivedAt time.Time
	Source    string
	Distance  float64 // match distance at the recording sighting, diagnostic
	CreatedAt time.Time
}

// Validate checks the required fields of the attendance record
func (x *AttendanceRecord) Validate() error {
	if x.ID == "" {
		return goerr.New("record ID cannot be empty")
	}
	if err := x.PersonID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid attendance record", goerr.V("record_id", x.ID))
	}
	if err := x.Date.Validate(); err != nil {
		return goerr.Wrap(err, "invalid attendance record", goerr.V("record_id", x.ID))
	}
	if x.ArrivedAt.IsZero() {
		return goerr.New("arrival timestamp is required", goerr.V("record_id", x.ID))
	}
	return nil
}

// DepartureID is a UUID-based identifier for Departure
type DepartureID string

// NewDepartureID generates a new UUID v4 DepartureID
func NewDepartureID() DepartureID {
	return DepartureID(uuid.New().String())
}

// String returns the string representation of DepartureID
func (x DepartureID) String() string {
	return string(x)
}

// Departure is the confirmed check-out of a person on a calendar day. Like
// arrivals it is append-only and unique per (PersonID, Date). A departure
// is only valid when an arrival record exists for the same key.
type Departure struct {
	ID        DepartureID
	PersonID  PersonID
	Date      types.DateKey
	LeftAt    time.Time
	Source    string
	CreatedAt time.Time
}

// Validate checks the required fields of the departure
func (x *Departure) Validate() error {
	if x.ID == "" {
		return goerr.New("departure ID cannot be empty")
	}
	if err := x.PersonID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid departure", goerr.V("departure_id", x.ID))
	}
	if err := x.Date.Validate(); err != nil {
		return goerr.Wrap(err, "invalid departure", goerr.V("departure_id", x.ID))
	}
	if x.LeftAt.IsZero() {
		return goerr.New("departure timestamp is required", goerr.V("departure_id", x.ID))
	}
	return nil
}
