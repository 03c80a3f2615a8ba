package gormdb

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"gorm.io/gorm"
)

// recordRow carries a unique composite index on (person_id, date) so the
// at-most-one-record-per-person-per-day rule holds even across processes.
type recordRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	PersonID  string    `gorm:"size:64;not null;uniqueIndex:uniq_record_person_date,priority:1"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:uniq_record_person_date,priority:2;index"`
	ArrivedAt time.Time `gorm:"type:datetime(6);not null"`
	Source    string    `gorm:"size:255"`
	Distance  float64
	CreatedAt time.Time `gorm:"type:datetime(6)"`
}

func (recordRow) TableName() string {
	return "attendance_records"
}

type departureRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	PersonID  string    `gorm:"size:64;not null;uniqueIndex:uniq_departure_person_date,priority:1"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:uniq_departure_person_date,priority:2;index"`
	LeftAt    time.Time `gorm:"type:datetime(6);not null"`
	Source    string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"type:datetime(6)"`
}

func (departureRow) TableName() string {
	return "departures"
}

func toRecordRow(record *model.AttendanceRecord) *recordRow {
	return &recordRow{
		ID:        string(record.ID),
		PersonID:  string(record.PersonID),
		Date:      string(record.Date),
		ArrivedAt: record.ArrivedAt,
		Source:    record.Source,
		Distance:  record.Distance,
		CreatedAt: record.CreatedAt,
	}
}

func (r *recordRow) toModel() *model.AttendanceRecord {
	return &model.AttendanceRecord{
		ID:        model.RecordID(r.ID),
		PersonID:  model.PersonID(r.PersonID),
		Date:      types.DateKey(r.Date),
		ArrivedAt: r.ArrivedAt,
		Source:    r.Source,
		Distance:  r.Distance,
		CreatedAt: r.CreatedAt,
	}
}

func toDepartureRow(departure *model.Departure) *departureRow {
	return &departureRow{
		ID:        string(departure.ID),
		PersonID:  string(departure.PersonID),
		Date:      string(departure.Date),
		LeftAt:    departure.LeftAt,
		Source:    departure.Source,
		CreatedAt: departure.CreatedAt,
	}
}

func (r *departureRow) toModel() *model.Departure {
	return &model.Departure{
		ID:        model.DepartureID(r.ID),
		PersonID:  model.PersonID(r.PersonID),
		Date:      types.DateKey(r.Date),
		LeftAt:    r.LeftAt,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
	}
}

type attendanceRepository struct {
	db *gorm.DB
}

func (r *attendanceRepository) PutRecord(ctx context.Context, record *model.AttendanceRecord) (*model.AttendanceRecord, error) {
	created := *record
	created.ID = model.NewRecordID()
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := created.Validate(); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(toRecordRow(&created)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, goerr.Wrap(ErrAlreadyExists, "attendance record already exists",
				goerr.V("person_id", record.PersonID),
				goerr.V("date", record.Date),
			)
		}
		return nil, goerr.Wrap(err, "failed to put attendance record",
			goerr.V("person_id", record.PersonID),
			goerr.V("date", record.Date),
		)
	}

	return &created, nil
}

func (r *attendanceRepository) GetRecord(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.AttendanceRecord, error) {
	var row recordRow
	err := r.db.WithContext(ctx).First(&row, "person_id = ? AND date = ?", string(personID), string(date)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "attendance record not found",
				goerr.V("person_id", personID),
				goerr.V("date", date),
			)
		}
		return nil, goerr.Wrap(err, "failed to get attendance record",
			goerr.V("person_id", personID),
			goerr.V("date", date),
		)
	}
	return row.toModel(), nil
}

func (r *attendanceRepository) ListRecordsByDate(ctx context.Context, date types.DateKey) ([]*model.AttendanceRecord, error) {
	var rows []recordRow
	err := r.db.WithContext(ctx).Where("date = ?", string(date)).Order("arrived_at, person_id").Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attendance records", goerr.V("date", date))
	}

	records := make([]*model.AttendanceRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toModel())
	}
	return records, nil
}

func (r *attendanceRepository) ListRecordsByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.AttendanceRecord, error) {
	var rows []recordRow
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND date >= ? AND date <= ?", string(personID), string(from), string(to)).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attendance records",
			goerr.V("person_id", personID),
			goerr.V("from", from),
			goerr.V("to", to),
		)
	}

	records := make([]*model.AttendanceRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toModel())
	}
	return records, nil
}

func (r *attendanceRepository) PutDeparture(ctx context.Context, departure *model.Departure) (*model.Departure, error) {
	created := *departure
	created.ID = model.NewDepartureID()
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := created.Validate(); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(toDepartureRow(&created)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, goerr.Wrap(ErrAlreadyExists, "departure already exists",
				goerr.V("person_id", departure.PersonID),
				goerr.V("date", departure.Date),
			)
		}
		return nil, goerr.Wrap(err, "failed to put departure",
			goerr.V("person_id", departure.PersonID),
			goerr.V("date", departure.Date),
		)
	}

	return &created, nil
}

func (r *attendanceRepository) GetDeparture(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.Departure, error) {
	var row departureRow
	err := r.db.WithContext(ctx).First(&row, "person_id = ? AND date = ?", string(personID), string(date)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "departure not found",
				goerr.V("person_id", personID),
				goerr.V("date", date),
			)
		}
		return nil, goerr.Wrap(err, "failed to get departure",
			goerr.V("person_id", personID),
			goerr.V("date", date),
		)
	}
	return row.toModel(), nil
}

func (r *attendanceRepository) ListDeparturesByDate(ctx context.Context, date types.DateKey) ([]*model.Departure, error) {
	var rows []departureRow
	err := r.db.WithContext(ctx).Where("date = ?", string(date)).Order("left_at, person_id").Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list departures", goerr.V("date", date))
	}

	departures := make([]*model.Departure, 0, len(rows))
	for i := range rows {
		departures = append(departures, rows[i].toModel())
	}
	return departures, nil
}

func (r *attendanceRepository) ListDeparturesByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.Departure, error) {
	var rows []departureRow
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND date >= ? AND date <= ?", string(personID), string(from), string(to)).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list departures",
			goerr.V("person_id", personID),
			goerr.V("from", from),
			goerr.V("to", to),
		)
	}

	departures := make([]*model.Departure, 0, len(rows))
	for i := range rows {
		departures = append(departures, rows[i].toModel())
	}
	return departures, nil
}
