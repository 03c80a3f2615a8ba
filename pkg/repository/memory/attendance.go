package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// ledgerKey is the natural key of both attendance records and departures.
type ledgerKey struct {
	personID model.PersonID
	date     types.DateKey
}

type attendanceRepository struct {
	mu         sync.RWMutex
	records    map[ledgerKey]*model.AttendanceRecord
	departures map[ledgerKey]*model.Departure
}

func newAttendanceRepository() *attendanceRepository {
	return &attendanceRepository{
		records:    make(map[ledgerKey]*model.AttendanceRecord),
		departures: make(map[ledgerKey]*model.Departure),
	}
}

func copyRecord(record *model.AttendanceRecord) *model.AttendanceRecord {
	copied := *record
	return &copied
}

func copyDeparture(departure *model.Departure) *model.Departure {
	copied := *departure
	return &copied
}

func (r *attendanceRepository) PutRecord(ctx context.Context, record *model.AttendanceRecord) (*model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyRecord(record)
	if created.ID == "" {
		created.ID = model.NewRecordID()
	}
	created.CreatedAt = time.Now().UTC()

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid attendance record")
	}

	key := ledgerKey{personID: created.PersonID, date: created.Date}
	if _, exists := r.records[key]; exists {
		return nil, goerr.Wrap(ErrAlreadyExists, "attendance record already exists",
			goerr.V("person_id", created.PersonID), goerr.V("date", created.Date))
	}

	r.records[key] = created
	return copyRecord(created), nil
}

func (r *attendanceRepository) GetRecord(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[ledgerKey{personID: personID, date: date}]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "attendance record not found",
			goerr.V("person_id", personID), goerr.V("date", date))
	}

	return copyRecord(record), nil
}

func (r *attendanceRepository) ListRecordsByDate(ctx context.Context, date types.DateKey) ([]*model.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*model.AttendanceRecord
	for key, record := range r.records {
		if key.date == date {
			records = append(records, copyRecord(record))
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].ArrivedAt.Equal(records[j].ArrivedAt) {
			return records[i].ArrivedAt.Before(records[j].ArrivedAt)
		}
		return records[i].PersonID < records[j].PersonID
	})

	return records, nil
}

func (r *attendanceRepository) ListRecordsByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*model.AttendanceRecord
	for key, record := range r.records {
		if key.personID != personID {
			continue
		}
		if key.date.Before(from) || to.Before(key.date) {
			continue
		}
		records = append(records, copyRecord(record))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	return records, nil
}

func (r *attendanceRepository) PutDeparture(ctx context.Context, departure *model.Departure) (*model.Departure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyDeparture(departure)
	if created.ID == "" {
		created.ID = model.NewDepartureID()
	}
	created.CreatedAt = time.Now().UTC()

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid departure")
	}

	key := ledgerKey{personID: created.PersonID, date: created.Date}
	if _, exists := r.departures[key]; exists {
		return nil, goerr.Wrap(ErrAlreadyExists, "departure already exists",
			goerr.V("person_id", created.PersonID), goerr.V("date", created.Date))
	}

	r.departures[key] = created
	return copyDeparture(created), nil
}

func (r *attendanceRepository) GetDeparture(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.Departure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	departure, exists := r.departures[ledgerKey{personID: personID, date: date}]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "departure not found",
			goerr.V("person_id", personID), goerr.V("date", date))
	}

	return copyDeparture(departure), nil
}

func (r *attendanceRepository) ListDeparturesByDate(ctx context.Context, date types.DateKey) ([]*model.Departure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var departures []*model.Departure
	for key, departure := range r.departures {
		if key.date == date {
			departures = append(departures, copyDeparture(departure))
		}
	}

	sort.Slice(departures, func(i, j int) bool {
		if !departures[i].LeftAt.Equal(departures[j].LeftAt) {
			return departures[i].LeftAt.Before(departures[j].LeftAt)
		}
		return departures[i].PersonID < departures[j].PersonID
	})

	return departures, nil
}

func (r *attendanceRepository) ListDeparturesByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.Departure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var departures []*model.Departure
	for key, departure := range r.departures {
		if key.personID != personID {
			continue
		}
		if key.date.Before(from) || to.Before(key.date) {
			continue
		}
		departures = append(departures, copyDeparture(departure))
	}

	sort.Slice(departures, func(i, j int) bool {
		return departures[i].Date.Before(departures[j].Date)
	})

	return departures, nil
}
