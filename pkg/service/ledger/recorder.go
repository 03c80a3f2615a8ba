package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// ErrLedgerWrite marks a failed append to the attendance ledger. The
// recorder leaves its state untouched on this error, so retrying the same
// detection later can still produce the record.
var ErrLedgerWrite = goerr.New("attendance ledger write failed")

// DefaultMinPresence is the minimum stay between a recorded arrival and an
// accepted departure. Shorter gaps are treated as matcher noise (someone
// walking past the exit camera right after checking in).
const DefaultMinPresence = time.Hour

type dayKey struct {
	personID model.PersonID
	date     types.DateKey
}

// dayState caches what the ledger holds for one (person, day). It is only
// mutated after the corresponding repository write was acknowledged.
type dayState struct {
	record    *model.AttendanceRecord
	departure *model.Departure
}

// Recorder turns repeated sightings into at most one attendance record per
// person per calendar day, and symmetrically at most one departure. All
// transitions run under one mutex spanning the ledger check, the write, and
// the cache commit, so two concurrent sightings of the same person cannot
// both append. The cache is an optimization; on a miss the repository is
// the truth, which keeps the rule intact across restarts.
type Recorder struct {
	repo        interfaces.AttendanceRepository
	loc         *time.Location
	minPresence time.Duration

	mu   sync.Mutex
	days map[dayKey]*dayState
}

// Option adjusts the recorder.
type Option func(*Recorder)

// WithTimezone sets the location used to derive the calendar day from a
// capture timestamp. Defaults to the process-local timezone.
func WithTimezone(loc *time.Location) Option {
	return func(x *Recorder) {
		if loc != nil {
			x.loc = loc
		}
	}
}

// WithMinPresence sets the minimum stay before a departure is accepted.
// Zero disables the check.
func WithMinPresence(d time.Duration) Option {
	return func(x *Recorder) {
		if d >= 0 {
			x.minPresence = d
		}
	}
}

// New creates a Recorder on top of the attendance repository.
func New(repo interfaces.AttendanceRepository, options ...Option) *Recorder {
	x := &Recorder{
		repo:        repo,
		loc:         time.Local,
		minPresence: DefaultMinPresence,
		days:        make(map[dayKey]*dayState),
	}
	for _, opt := range options {
		opt(x)
	}
	return x
}

// Timezone returns the location used to derive calendar days.
func (x *Recorder) Timezone() *time.Location {
	return x.loc
}

// MarkArrival records the first sighting of a person on the calendar day of
// capturedAt. The first call appends a record and returns created=true;
// any later call for the same (person, day) returns the original record
// with created=false. On a write failure nothing transitions, so the same
// sighting can be retried.
func (x *Recorder) MarkArrival(ctx context.Context, personID model.PersonID, capturedAt time.Time, source string, distance float64) (*model.AttendanceRecord, bool, error) {
	if err := personID.Validate(); err != nil {
		return nil, false, goerr.Wrap(err, "invalid person ID")
	}
	if capturedAt.IsZero() {
		return nil, false, goerr.New("capture timestamp is required", goerr.V("person_id", personID))
	}

	date := types.NewDateKey(capturedAt, x.loc)
	key := dayKey{personID: personID, date: date}

	x.mu.Lock()
	defer x.mu.Unlock()

	state, err := x.loadDay(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if state.record != nil {
		return state.record, false, nil
	}

	record, err := x.repo.PutRecord(ctx, &model.AttendanceRecord{
		PersonID:  personID,
		Date:      date,
		ArrivedAt: capturedAt,
		Source:    source,
		Distance:  distance,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrAlreadyExists) {
			// Another writer beat us to the ledger. Adopt its record.
			existing, gerr := x.repo.GetRecord(ctx, personID, date)
			if gerr == nil {
				state.record = existing
				return existing, false, nil
			}
		}
		return nil, false, goerr.Wrap(ErrLedgerWrite, err.Error(),
			goerr.V("person_id", personID),
			goerr.V("date", date),
		)
	}

	// Only now, after the acknowledged write, does the day become Present.
	state.record = record
	return record, true, nil
}

// MarkDeparture records the check-out of a person for the day of
// capturedAt. It requires a recorded arrival (DepartureNotPresent
// otherwise), rejects a second departure (DepartureDuplicate, with
// the original), and rejects departures earlier than the minimum presence
// after arrival (DepartureTooSoon).
func (x *Recorder) MarkDeparture(ctx context.Context, personID model.PersonID, capturedAt time.Time, source string) (*model.Departure, types.DepartureKind, error) {
	if err := personID.Validate(); err != nil {
		return nil, "", goerr.Wrap(err, "invalid person ID")
	}
	if capturedAt.IsZero() {
		return nil, "", goerr.New("capture timestamp is required", goerr.V("person_id", personID))
	}

	date := types.NewDateKey(capturedAt, x.loc)
	key := dayKey{personID: personID, date: date}

	x.mu.Lock()
	defer x.mu.Unlock()

	state, err := x.loadDay(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if state.record == nil {
		return nil, types.DepartureNotPresent, nil
	}
	if state.departure != nil {
		return state.departure, types.DepartureDuplicate, nil
	}
	if x.minPresence > 0 && capturedAt.Sub(state.record.ArrivedAt) < x.minPresence {
		return nil, types.DepartureTooSoon, nil
	}

	departure, err := x.repo.PutDeparture(ctx, &model.Departure{
		PersonID: personID,
		Date:     date,
		LeftAt:   capturedAt,
		Source:   source,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrAlreadyExists) {
			existing, gerr := x.repo.GetDeparture(ctx, personID, date)
			if gerr == nil {
				state.departure = existing
				return existing, types.DepartureDuplicate, nil
			}
		}
		return nil, "", goerr.Wrap(ErrLedgerWrite, err.Error(),
			goerr.V("person_id", personID),
			goerr.V("date", date),
		)
	}

	state.departure = departure
	return departure, types.DepartureRecorded, nil
}

// Reset drops cached day states older than the given date and returns how
// many were pruned. The rollover worker calls this so the cache does not
// grow one entry per person per day forever.
func (x *Recorder) Reset(before types.DateKey) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	pruned := 0
	for key := range x.days {
		if key.date.Before(before) {
			delete(x.days, key)
			pruned++
		}
	}
	return pruned
}

// loadDay returns the cached state for the key, falling back to the
// repository on a miss. Absence in the repository is a valid state, not an
// error. Must be called with the mutex held.
func (x *Recorder) loadDay(ctx context.Context, key dayKey) (*dayState, error) {
	if state, ok := x.days[key]; ok {
		return state, nil
	}

	state := &dayState{}

	record, err := x.repo.GetRecord(ctx, key.personID, key.date)
	switch {
	case err == nil:
		state.record = record
	case !errors.Is(err, interfaces.ErrNotFound):
		return nil, goerr.Wrap(err, "failed to read attendance ledger",
			goerr.V("person_id", key.personID),
			goerr.V("date", key.date),
		)
	}

	departure, err := x.repo.GetDeparture(ctx, key.personID, key.date)
	switch {
	case err == nil:
		state.departure = departure
	case !errors.Is(err, interfaces.ErrNotFound):
		return nil, goerr.Wrap(err, "failed to read attendance ledger",
			goerr.V("person_id", key.personID),
			goerr.V("date", key.date),
		)
	}

	x.days[key] = state
	return state, nil
}
