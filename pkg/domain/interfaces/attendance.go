package interfaces

import (
	"context"

	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// AttendanceRepository defines the interface for attendance ledger
// persistence. Records and departures are append-only; there are no update
// operations on purpose.
type AttendanceRepository interface {
	// PutRecord appends an attendance record. The (PersonID, Date) pair is
	// a natural key; backends reject a second record for the same key.
	PutRecord(ctx context.Context, record *model.AttendanceRecord) (*model.AttendanceRecord, error)

	// GetRecord retrieves the record of a person on a given day
	GetRecord(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.AttendanceRecord, error)

	// ListRecordsByDate retrieves all records of a day, ordered by arrival time
	ListRecordsByDate(ctx context.Context, date types.DateKey) ([]*model.AttendanceRecord, error)

	// ListRecordsByPersonRange retrieves one person's records in [from, to]
	ListRecordsByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.AttendanceRecord, error)

	// PutDeparture appends a departure event, unique per (PersonID, Date)
	PutDeparture(ctx context.Context, departure *model.Departure) (*model.Departure, error)

	// GetDeparture retrieves the departure of a person on a given day
	GetDeparture(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.Departure, error)

	// ListDeparturesByDate retrieves all departures of a day
	ListDeparturesByDate(ctx context.Context, date types.DateKey) ([]*model.Departure, error)

	// ListDeparturesByPersonRange retrieves one person's departures in [from, to]
	ListDeparturesByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.Departure, error)
}
