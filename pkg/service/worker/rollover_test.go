package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/repository/memory"
	"github.com/seiyo-lab/kaoban/pkg/service/ledger"
	"github.com/seiyo-lab/kaoban/pkg/service/worker"
)

// captureNotifier records announced summaries and can fail on demand.
type captureNotifier struct {
	mu        sync.Mutex
	summaries []*model.DaySummary
	err       error
}

func (x *captureNotifier) NotifyArrival(ctx context.Context, person *model.Person, record *model.AttendanceRecord) error {
	return nil
}

func (x *captureNotifier) NotifyDeparture(ctx context.Context, person *model.Person, departure *model.Departure) error {
	return nil
}

func (x *captureNotifier) NotifySummary(ctx context.Context, summary *model.DaySummary) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return x.err
	}
	x.summaries = append(x.summaries, summary)
	return nil
}

func (x *captureNotifier) captured() []*model.DaySummary {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.summaries
}

// failingLister fails day listings to exercise the rollover error path.
type failingLister struct {
	interfaces.AttendanceRepository
}

func (x failingLister) ListRecordsByDate(ctx context.Context, date types.DateKey) ([]*model.AttendanceRecord, error) {
	return nil, goerr.New("backend down")
}

func TestRolloverRunOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().Attendance()
	rec := ledger.New(repo, ledger.WithTimezone(time.UTC), ledger.WithMinPresence(0))

	// An arrival the day before, to be pruned by the rollover.
	_, _, err := rec.MarkArrival(ctx, model.NewPersonID(), time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC), "gate-1", 0.2)
	gt.NoError(t, err).Required()

	// Three arrivals on the day, two of them depart.
	people := []model.PersonID{model.NewPersonID(), model.NewPersonID(), model.NewPersonID()}
	for _, personID := range people {
		_, _, err := rec.MarkArrival(ctx, personID, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), "gate-1", 0.2)
		gt.NoError(t, err).Required()
	}
	for _, personID := range people[:2] {
		_, kind, err := rec.MarkDeparture(ctx, personID, time.Date(2026, 2, 10, 17, 0, 0, 0, time.UTC), "gate-1")
		gt.NoError(t, err).Required()
		gt.Value(t, kind).Equal(types.DepartureRecorded)
	}

	notifier := &captureNotifier{}
	w := worker.NewRollover(rec, repo, worker.WithNotifier(notifier))

	gt.NoError(t, w.RunOnce(ctx, time.Date(2026, 2, 10, 23, 59, 0, 0, time.UTC))).Required()

	summaries := notifier.captured()
	gt.Array(t, summaries).Length(1).Required()
	gt.Value(t, summaries[0].Date).Equal(types.DateKey("2026-02-10"))
	gt.Value(t, summaries[0].Arrivals).Equal(3)
	gt.Value(t, summaries[0].Departures).Equal(2)
	gt.Value(t, summaries[0].Present).Equal(1)

	// The Feb 9 cache entry is gone; only Feb 10 entries remain.
	gt.Value(t, rec.Reset(types.DateKey("2026-02-10"))).Equal(0)
	gt.Value(t, rec.Reset(types.DateKey("2026-02-11"))).Equal(3)
}

func TestRolloverNotifyFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().Attendance()
	rec := ledger.New(repo, ledger.WithTimezone(time.UTC))

	notifier := &captureNotifier{err: goerr.New("slack is down")}
	w := worker.NewRollover(rec, repo, worker.WithNotifier(notifier))

	gt.NoError(t, w.RunOnce(ctx, time.Date(2026, 2, 10, 23, 59, 0, 0, time.UTC)))
}

func TestRolloverListFailure(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().Attendance()
	rec := ledger.New(repo, ledger.WithTimezone(time.UTC))

	w := worker.NewRollover(rec, failingLister{AttendanceRepository: repo}, worker.WithNotifier(&captureNotifier{}))

	err := w.RunOnce(ctx, time.Date(2026, 2, 10, 23, 59, 0, 0, time.UTC))
	gt.Error(t, err)
}

func TestRolloverStopsCleanly(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().Attendance()
	rec := ledger.New(repo, ledger.WithTimezone(time.UTC))

	w := worker.NewRollover(rec, repo)
	gt.NoError(t, w.Start(ctx)).Required()

	stopStart := time.Now()
	w.Stop()

	if elapsed := time.Since(stopStart); elapsed > time.Second {
		t.Errorf("Stop() took too long: %v", elapsed)
	}
}

func TestRolloverStopWithoutStart(t *testing.T) {
	repo := memory.New().Attendance()
	rec := ledger.New(repo, ledger.WithTimezone(time.UTC))

	// Must not panic.
	worker.NewRollover(rec, repo).Stop()
}
