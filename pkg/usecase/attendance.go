package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/service/facematch"
	"github.com/seiyo-lab/kaoban/pkg/service/ledger"
	"github.com/seiyo-lab/kaoban/pkg/service/notify"
	"github.com/seiyo-lab/kaoban/pkg/utils/async"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
	"golang.org/x/time/rate"
)

// AttendanceUseCase is the detection pipeline: match the probe against the
// gallery, apply the optional per-person cooldown, and write the result to
// the attendance ledger. Recorded events are announced asynchronously;
// notification failures never fail the pipeline.
type AttendanceUseCase struct {
	repo     interfaces.Repository
	matcher  facematch.Matcher
	recorder *ledger.Recorder
	notifier notify.Service
	cooldown time.Duration

	// Arrivals and departures throttle independently: a burst at the
	// entrance camera must not eat the exit camera's tokens.
	mu         sync.Mutex
	arrivals   map[model.PersonID]*rate.Limiter
	departures map[model.PersonID]*rate.Limiter
}

func NewAttendanceUseCase(repo interfaces.Repository, matcher facematch.Matcher, recorder *ledger.Recorder, notifier notify.Service, cooldown time.Duration) *AttendanceUseCase {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &AttendanceUseCase{
		repo:       repo,
		matcher:    matcher,
		recorder:   recorder,
		notifier:   notifier,
		cooldown:   cooldown,
		arrivals:   make(map[model.PersonID]*rate.Limiter),
		departures: make(map[model.PersonID]*rate.Limiter),
	}
}

// ProcessDetection resolves one arrival sighting. Unknown probes are
// reported, never recorded. The first accepted sighting of a person on a
// day creates the attendance record; every later one is a duplicate. A
// ledger write failure propagates to the caller so the capture device can
// retry the same detection.
func (uc *AttendanceUseCase) ProcessDetection(ctx context.Context, detection *model.Detection) (model.Outcome, error) {
	if err := detection.Validate(); err != nil {
		return model.Outcome{}, goerr.Wrap(err, "invalid detection")
	}

	result, err := uc.matcher.Match(ctx, detection.Encoding)
	if err != nil {
		return model.Outcome{}, goerr.Wrap(err, "failed to match detection")
	}
	if !result.Known {
		return model.UnrecognizedOutcome(result.Distance), nil
	}

	if !uc.allow(uc.arrivals, result.PersonID, detection.CapturedAt) {
		return model.ThrottledOutcome(result.PersonID, result.Distance), nil
	}

	record, created, err := uc.recorder.MarkArrival(ctx, result.PersonID, detection.CapturedAt, detection.Source, result.Distance)
	if err != nil {
		return model.Outcome{}, goerr.Wrap(err, "failed to mark arrival", goerr.V(PersonIDKey, result.PersonID))
	}
	if !created {
		return model.DuplicateOutcome(record, result.Distance), nil
	}

	uc.announceArrival(ctx, record)
	return model.RecordedOutcome(record, result.Distance), nil
}

// ProcessDeparture resolves one departure sighting. The match and cooldown
// front mirrors ProcessDetection; the ledger step requires an arrival on
// the same day and enforces the minimum presence.
func (uc *AttendanceUseCase) ProcessDeparture(ctx context.Context, detection *model.Detection) (model.DepartureOutcome, error) {
	if err := detection.Validate(); err != nil {
		return model.DepartureOutcome{}, goerr.Wrap(err, "invalid detection")
	}

	result, err := uc.matcher.Match(ctx, detection.Encoding)
	if err != nil {
		return model.DepartureOutcome{}, goerr.Wrap(err, "failed to match detection")
	}
	if !result.Known {
		return model.DepartureOutcome{
			Kind:     types.DepartureUnrecognized,
			Distance: result.Distance,
		}, nil
	}

	if !uc.allow(uc.departures, result.PersonID, detection.CapturedAt) {
		return model.DepartureOutcome{
			Kind:     types.DepartureThrottled,
			PersonID: result.PersonID,
			Distance: result.Distance,
		}, nil
	}

	departure, kind, err := uc.recorder.MarkDeparture(ctx, result.PersonID, detection.CapturedAt, detection.Source)
	if err != nil {
		return model.DepartureOutcome{}, goerr.Wrap(err, "failed to mark departure", goerr.V(PersonIDKey, result.PersonID))
	}

	if kind == types.DepartureRecorded {
		uc.announceDeparture(ctx, departure)
	}
	return model.DepartureOutcome{
		Kind:      kind,
		PersonID:  result.PersonID,
		Distance:  result.Distance,
		Departure: departure,
	}, nil
}

// allow consults the per-person token bucket. The detection timestamp is
// the time base, so replaying a historical capture log throttles the same
// way the live stream did.
func (uc *AttendanceUseCase) allow(limiters map[model.PersonID]*rate.Limiter, personID model.PersonID, at time.Time) bool {
	if uc.cooldown <= 0 {
		return true
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	limiter, ok := limiters[personID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(uc.cooldown), 1)
		limiters[personID] = limiter
	}
	return limiter.AllowN(at, 1)
}

func (uc *AttendanceUseCase) announceArrival(ctx context.Context, record *model.AttendanceRecord) {
	async.Dispatch(ctx, func(ctx context.Context) error {
		person := uc.lookupPerson(ctx, record.PersonID)
		return uc.notifier.NotifyArrival(ctx, person, record)
	})
}

func (uc *AttendanceUseCase) announceDeparture(ctx context.Context, departure *model.Departure) {
	async.Dispatch(ctx, func(ctx context.Context) error {
		person := uc.lookupPerson(ctx, departure.PersonID)
		return uc.notifier.NotifyDeparture(ctx, person, departure)
	})
}

// lookupPerson resolves the person for a notification. The announcement
// still goes out with the bare ID when the registry entry is gone.
func (uc *AttendanceUseCase) lookupPerson(ctx context.Context, personID model.PersonID) *model.Person {
	person, err := uc.repo.Person().Get(ctx, personID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			logging.From(ctx).Warn("failed to load person for notification",
				"person_id", personID,
				"error", err,
			)
		}
		return nil
	}
	return person
}
