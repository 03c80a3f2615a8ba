package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/service/ledger"
	"github.com/seiyo-lab/kaoban/pkg/service/notify"
	"github.com/seiyo-lab/kaoban/pkg/utils/errutil"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
)

// DefaultRolloverAt is the wall-clock time the daily rollover fires.
const DefaultRolloverAt = "23:59"

// Rollover closes out each attendance day: it logs and announces the day
// summary, then prunes recorder cache entries older than that day.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type Rollover struct {
	recorder *ledger.Recorder
	repo     interfaces.AttendanceRepository
	notifier notify.Service
	loc      *time.Location
	at       string

	scheduler *gocron.Scheduler
}

// RolloverOption is a functional option for the rollover worker.
type RolloverOption func(*Rollover)

// WithRolloverAt sets the wall-clock time ("HH:MM") the job fires. The time
// is read as end-of-day: the summary covers the day the job fires in.
func WithRolloverAt(at string) RolloverOption {
	return func(x *Rollover) {
		if at != "" {
			x.at = at
		}
	}
}

// WithNotifier sets the notifier the day summary is announced through.
func WithNotifier(svc notify.Service) RolloverOption {
	return func(x *Rollover) {
		if svc != nil {
			x.notifier = svc
		}
	}
}

// NewRollover creates the daily rollover worker. The schedule runs in the
// recorder's timezone so "23:59" means the site's end of day.
func NewRollover(recorder *ledger.Recorder, repo interfaces.AttendanceRepository, options ...RolloverOption) *Rollover {
	x := &Rollover{
		recorder: recorder,
		repo:     repo,
		notifier: notify.Discard{},
		loc:      recorder.Timezone(),
		at:       DefaultRolloverAt,
	}
	for _, opt := range options {
		opt(x)
	}
	return x
}

// Start schedules the daily job. It does not block; Stop shuts the
// scheduler down.
func (x *Rollover) Start(ctx context.Context) error {
	x.scheduler = gocron.NewScheduler(x.loc)

	if _, err := x.scheduler.Every(1).Day().At(x.at).Do(func() {
		if err := x.runOnce(ctx, time.Now()); err != nil {
			errutil.Handle(ctx, err, "attendance rollover failed")
		}
	}); err != nil {
		return goerr.Wrap(err, "failed to schedule rollover", goerr.V("at", x.at))
	}

	x.scheduler.StartAsync()
	logging.Default().Info("attendance rollover worker starting",
		"at", x.at,
		"timezone", x.loc.String())
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (x *Rollover) Stop() {
	if x.scheduler == nil {
		return
	}
	x.scheduler.Stop()
	logging.Default().Info("attendance rollover worker stopped")
}

// runOnce closes out the day containing now: summary first, then the cache
// prune, so a failed summary read never costs cached state.
func (x *Rollover) runOnce(ctx context.Context, now time.Time) error {
	day := types.NewDateKey(now, x.loc)

	records, err := x.repo.ListRecordsByDate(ctx, day)
	if err != nil {
		return goerr.Wrap(err, "failed to list records for rollover", goerr.V("date", day))
	}
	departures, err := x.repo.ListDeparturesByDate(ctx, day)
	if err != nil {
		return goerr.Wrap(err, "failed to list departures for rollover", goerr.V("date", day))
	}

	// Departures are unique per (person, day) and require an arrival, so
	// the difference counts people still present.
	summary := &model.DaySummary{
		Date:       day,
		Arrivals:   len(records),
		Departures: len(departures),
		Present:    len(records) - len(departures),
	}

	pruned := x.recorder.Reset(day)

	logging.From(ctx).Info("attendance day rolled over",
		"date", day.String(),
		"arrivals", summary.Arrivals,
		"departures", summary.Departures,
		"present", summary.Present,
		"pruned_cache_entries", pruned)

	if err := x.notifier.NotifySummary(ctx, summary); err != nil {
		// Announcing the summary is best-effort; the rollover succeeded.
		errutil.Handle(ctx, err, "failed to notify day summary")
	}

	return nil
}
