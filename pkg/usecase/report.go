package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// ReportUseCase assembles attendance reports by joining ledger events with
// the person registry. Rows keep a nil Person when the registry entry was
// deleted after the event was written.
type ReportUseCase struct {
	repo interfaces.Repository
	loc  *time.Location
}

func NewReportUseCase(repo interfaces.Repository, loc *time.Location) *ReportUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &ReportUseCase{
		repo: repo,
		loc:  loc,
	}
}

// Daily returns one row per person seen on the given day, ordered by
// arrival time.
func (uc *ReportUseCase) Daily(ctx context.Context, date types.DateKey) ([]*model.DailyReportRow, error) {
	if err := date.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid report date")
	}

	records, err := uc.repo.Attendance().ListRecordsByDate(ctx, date)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attendance records", goerr.V("date", date))
	}
	departures, err := uc.departuresByPerson(ctx, date)
	if err != nil {
		return nil, err
	}

	rows := make([]*model.DailyReportRow, 0, len(records))
	for _, record := range records {
		person, err := uc.lookupPerson(ctx, record.PersonID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, &model.DailyReportRow{
			Person:    person,
			Record:    record,
			Departure: departures[record.PersonID],
		})
	}
	return rows, nil
}

// Active returns the people present at the given instant: arrived on that
// day at or before it, and not departed by it. Rows carry no departure.
func (uc *ReportUseCase) Active(ctx context.Context, at time.Time) ([]*model.DailyReportRow, error) {
	if at.IsZero() {
		return nil, goerr.New("report instant is required")
	}

	date := types.NewDateKey(at, uc.loc)
	records, err := uc.repo.Attendance().ListRecordsByDate(ctx, date)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attendance records", goerr.V("date", date))
	}
	departures, err := uc.departuresByPerson(ctx, date)
	if err != nil {
		return nil, err
	}

	var rows []*model.DailyReportRow
	for _, record := range records {
		if record.ArrivedAt.After(at) {
			continue
		}
		if departure := departures[record.PersonID]; departure != nil && !departure.LeftAt.After(at) {
			continue
		}
		person, err := uc.lookupPerson(ctx, record.PersonID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, &model.DailyReportRow{
			Person: person,
			Record: record,
		})
	}
	return rows, nil
}

// PersonRange returns one person's rows for every day in [from, to] that
// has an attendance record.
func (uc *ReportUseCase) PersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.DailyReportRow, error) {
	if err := personID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid report subject")
	}
	if err := from.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid range start")
	}
	if err := to.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid range end")
	}
	if to.Before(from) {
		return nil, goerr.New("report range is inverted",
			goerr.V("from", from),
			goerr.V("to", to),
		)
	}

	records, err := uc.repo.Attendance().ListRecordsByPersonRange(ctx, personID, from, to)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attendance records", goerr.V(PersonIDKey, personID))
	}
	departures, err := uc.repo.Attendance().ListDeparturesByPersonRange(ctx, personID, from, to)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list departures", goerr.V(PersonIDKey, personID))
	}
	byDate := make(map[types.DateKey]*model.Departure, len(departures))
	for _, departure := range departures {
		byDate[departure.Date] = departure
	}

	person, err := uc.lookupPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	rows := make([]*model.DailyReportRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, &model.DailyReportRow{
			Person:    person,
			Record:    record,
			Departure: byDate[record.Date],
		})
	}
	return rows, nil
}

func (uc *ReportUseCase) departuresByPerson(ctx context.Context, date types.DateKey) (map[model.PersonID]*model.Departure, error) {
	departures, err := uc.repo.Attendance().ListDeparturesByDate(ctx, date)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list departures", goerr.V("date", date))
	}
	byPerson := make(map[model.PersonID]*model.Departure, len(departures))
	for _, departure := range departures {
		byPerson[departure.PersonID] = departure
	}
	return byPerson, nil
}

// lookupPerson resolves a registry entry for a report row. A deleted person
// yields nil without error; the row still reports the ledger event.
func (uc *ReportUseCase) lookupPerson(ctx context.Context, personID model.PersonID) (*model.Person, error) {
	person, err := uc.repo.Person().Get(ctx, personID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to look up person", goerr.V(PersonIDKey, personID))
	}
	return person, nil
}
