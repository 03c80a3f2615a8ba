package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/repository/memory"
	"github.com/seiyo-lab/kaoban/pkg/service/facematch"
	"github.com/seiyo-lab/kaoban/pkg/service/ledger"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
)

func enc(values ...float64) types.Encoding {
	return types.Encoding(values)
}

func det(encoding types.Encoding, at time.Time) *model.Detection {
	return &model.Detection{
		Encoding:   encoding,
		CapturedAt: at,
		Source:     "test-cam",
	}
}

// chanNotifier feeds notifications into a channel so tests can wait for the
// asynchronous announcements.
type chanNotifier struct {
	events chan string
}

func (x *chanNotifier) NotifyArrival(ctx context.Context, person *model.Person, record *model.AttendanceRecord) error {
	name := ""
	if person != nil {
		name = person.Name
	}
	x.events <- fmt.Sprintf("arrival/%s/%s", record.PersonID, name)
	return nil
}

func (x *chanNotifier) NotifyDeparture(ctx context.Context, person *model.Person, departure *model.Departure) error {
	name := ""
	if person != nil {
		name = person.Name
	}
	x.events <- fmt.Sprintf("departure/%s/%s", departure.PersonID, name)
	return nil
}

func (x *chanNotifier) NotifySummary(ctx context.Context, summary *model.DaySummary) error {
	x.events <- fmt.Sprintf("summary/%s", summary.Date)
	return nil
}

type pipelineEnv struct {
	repo    *memory.Memory
	gallery *facematch.Gallery
	uc      *usecase.UseCases
	events  chan string
}

func newPipelineEnv(t *testing.T, opts ...usecase.Option) *pipelineEnv {
	t.Helper()

	repo := memory.New()
	gallery := facematch.NewGallery()
	matcher := facematch.NewLinear(gallery, 0.6)
	recorder := ledger.New(repo.Attendance(), ledger.WithTimezone(time.UTC))

	events := make(chan string, 16)
	opts = append([]usecase.Option{usecase.WithNotifier(&chanNotifier{events: events})}, opts...)

	return &pipelineEnv{
		repo:    repo,
		gallery: gallery,
		uc:      usecase.New(repo, gallery, matcher, recorder, opts...),
		events:  events,
	}
}

func (env *pipelineEnv) enroll(t *testing.T, name string, encoding types.Encoding) model.PersonID {
	t.Helper()

	ctx := context.Background()
	person, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: name})
	gt.NoError(t, err).Required()
	_, _, err = env.uc.Enroll.AddFaceSample(ctx, person.ID, encoding, "", nil)
	gt.NoError(t, err).Required()
	return person.ID
}

func waitEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return ""
	}
}

func assertNoEvent(t *testing.T, events <-chan string) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected notification: %s", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcessDetection(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t)

	aliceEnc := enc(0.1, 0.2, 0.3, 0.4)
	alice := env.enroll(t, "Alice", aliceEnc)

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	t.Run("first sighting is recorded", func(t *testing.T) {
		outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0))
		gt.NoError(t, err).Required()

		gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)
		gt.Value(t, outcome.PersonID).Equal(alice)
		gt.Value(t, outcome.Distance).Equal(0.0)
		gt.Value(t, outcome.Record).NotNil().Required()
		gt.Bool(t, outcome.Record.ArrivedAt.Equal(t0)).True()
		gt.Value(t, outcome.Record.Source).Equal("test-cam")

		gt.Value(t, waitEvent(t, env.events)).Equal(fmt.Sprintf("arrival/%s/Alice", alice))
	})

	t.Run("same day repeat is duplicate", func(t *testing.T) {
		outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0.Add(time.Hour)))
		gt.NoError(t, err).Required()

		gt.Value(t, outcome.Kind).Equal(types.OutcomeDuplicate)
		gt.Value(t, outcome.Record).NotNil().Required()
		gt.Bool(t, outcome.Record.ArrivedAt.Equal(t0)).True()
		assertNoEvent(t, env.events)
	})

	t.Run("unknown probe never records", func(t *testing.T) {
		outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(enc(5, 5, 5, 5), t0.Add(2*time.Hour)))
		gt.NoError(t, err).Required()

		gt.Value(t, outcome.Kind).Equal(types.OutcomeUnrecognized)
		gt.Value(t, outcome.PersonID).Equal(model.PersonID(""))
		gt.Value(t, outcome.Record).Nil()

		records, err := env.repo.Attendance().ListRecordsByDate(ctx, types.DateKey("2026-02-10"))
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(1)
		assertNoEvent(t, env.events)
	})

	t.Run("next day opens a fresh record", func(t *testing.T) {
		outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0.Add(24*time.Hour)))
		gt.NoError(t, err).Required()

		gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)
		gt.Value(t, outcome.Record.Date).Equal(types.DateKey("2026-02-11"))
		gt.Value(t, waitEvent(t, env.events)).Equal(fmt.Sprintf("arrival/%s/Alice", alice))
	})

	t.Run("invalid detection is rejected", func(t *testing.T) {
		_, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, time.Time{}))
		gt.Error(t, err)

		_, err = env.uc.Attendance.ProcessDetection(ctx, det(nil, t0))
		gt.Error(t, err)
	})
}

func TestProcessDetectionBurst(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t)

	aliceEnc := enc(0.1, 0.2, 0.3, 0.4)
	env.enroll(t, "Alice", aliceEnc)

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	kinds := map[types.OutcomeKind]int{}
	for i := 0; i < 5; i++ {
		outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0.Add(time.Duration(i)*time.Minute)))
		gt.NoError(t, err).Required()
		kinds[outcome.Kind]++
	}

	gt.Value(t, kinds[types.OutcomeRecorded]).Equal(1)
	gt.Value(t, kinds[types.OutcomeDuplicate]).Equal(4)

	records, err := env.repo.Attendance().ListRecordsByDate(ctx, types.DateKey("2026-02-10"))
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(1)
}

func TestProcessDetectionCooldown(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t, usecase.WithCooldown(10*time.Minute))

	aliceEnc := enc(0.1, 0.2, 0.3, 0.4)
	bobEnc := enc(0.9, 0.8, 0.7, 0.6)
	alice := env.enroll(t, "Alice", aliceEnc)
	bob := env.enroll(t, "Bob", bobEnc)

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)

	// Within the cooldown the ledger is not even consulted.
	outcome, err = env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0.Add(time.Minute)))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeThrottled)
	gt.Value(t, outcome.PersonID).Equal(alice)
	gt.Value(t, outcome.Record).Nil()

	// The cooldown is per person.
	outcome, err = env.uc.Attendance.ProcessDetection(ctx, det(bobEnc, t0.Add(time.Minute)))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)
	gt.Value(t, outcome.PersonID).Equal(bob)

	// After the cooldown the sighting reaches the ledger again.
	outcome, err = env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0.Add(11*time.Minute)))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeDuplicate)

	records, err := env.repo.Attendance().ListRecordsByDate(ctx, types.DateKey("2026-02-10"))
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(2)
}

// flakyLedger fails writes on demand while reads pass through.
type flakyLedger struct {
	interfaces.AttendanceRepository
	failPuts bool
}

func (x *flakyLedger) PutRecord(ctx context.Context, record *model.AttendanceRecord) (*model.AttendanceRecord, error) {
	if x.failPuts {
		return nil, goerr.New("ledger backend unavailable")
	}
	return x.AttendanceRepository.PutRecord(ctx, record)
}

func (x *flakyLedger) PutDeparture(ctx context.Context, departure *model.Departure) (*model.Departure, error) {
	if x.failPuts {
		return nil, goerr.New("ledger backend unavailable")
	}
	return x.AttendanceRepository.PutDeparture(ctx, departure)
}

func TestProcessDetectionLedgerFailure(t *testing.T) {
	ctx := context.Background()

	repo := memory.New()
	flaky := &flakyLedger{AttendanceRepository: repo.Attendance(), failPuts: true}
	gallery := facematch.NewGallery()
	matcher := facematch.NewLinear(gallery, 0.6)
	recorder := ledger.New(flaky, ledger.WithTimezone(time.UTC))

	events := make(chan string, 16)
	env := usecase.New(repo, gallery, matcher, recorder, usecase.WithNotifier(&chanNotifier{events: events}))

	aliceEnc := enc(0.1, 0.2, 0.3, 0.4)
	person, err := env.Enroll.RegisterPerson(ctx, &model.Person{Name: "Alice"})
	gt.NoError(t, err).Required()
	_, _, err = env.Enroll.AddFaceSample(ctx, person.ID, aliceEnc, "", nil)
	gt.NoError(t, err).Required()

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	_, err = env.Attendance.ProcessDetection(ctx, det(aliceEnc, t0))
	gt.Error(t, err).Required()
	gt.Bool(t, errors.Is(err, ledger.ErrLedgerWrite)).True()
	assertNoEvent(t, events)

	// The backend recovers and the same detection can be retried.
	flaky.failPuts = false
	outcome, err := env.Attendance.ProcessDetection(ctx, det(aliceEnc, t0))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)
	gt.Value(t, waitEvent(t, events)).Equal(fmt.Sprintf("arrival/%s/Alice", person.ID))
}

func TestProcessDeparture(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t)

	aliceEnc := enc(0.1, 0.2, 0.3, 0.4)
	bobEnc := enc(0.9, 0.8, 0.7, 0.6)
	alice := env.enroll(t, "Alice", aliceEnc)
	env.enroll(t, "Bob", bobEnc)

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)
	waitEvent(t, env.events)

	t.Run("too soon after arrival", func(t *testing.T) {
		departure, err := env.uc.Attendance.ProcessDeparture(ctx, det(aliceEnc, t0.Add(30*time.Minute)))
		gt.NoError(t, err).Required()
		gt.Value(t, departure.Kind).Equal(types.DepartureTooSoon)
		gt.Value(t, departure.Departure).Nil()
		assertNoEvent(t, env.events)
	})

	t.Run("recorded after the minimum presence", func(t *testing.T) {
		departure, err := env.uc.Attendance.ProcessDeparture(ctx, det(aliceEnc, t0.Add(8*time.Hour)))
		gt.NoError(t, err).Required()
		gt.Value(t, departure.Kind).Equal(types.DepartureRecorded)
		gt.Value(t, departure.PersonID).Equal(alice)
		gt.Value(t, departure.Departure).NotNil().Required()
		gt.Bool(t, departure.Departure.LeftAt.Equal(t0.Add(8*time.Hour))).True()
		gt.Value(t, waitEvent(t, env.events)).Equal(fmt.Sprintf("departure/%s/Alice", alice))
	})

	t.Run("second departure is duplicate", func(t *testing.T) {
		departure, err := env.uc.Attendance.ProcessDeparture(ctx, det(aliceEnc, t0.Add(9*time.Hour)))
		gt.NoError(t, err).Required()
		gt.Value(t, departure.Kind).Equal(types.DepartureDuplicate)
		gt.Value(t, departure.Departure).NotNil().Required()
		gt.Bool(t, departure.Departure.LeftAt.Equal(t0.Add(8*time.Hour))).True()
		assertNoEvent(t, env.events)
	})

	t.Run("unknown probe is unrecognized", func(t *testing.T) {
		departure, err := env.uc.Attendance.ProcessDeparture(ctx, det(enc(5, 5, 5, 5), t0.Add(8*time.Hour)))
		gt.NoError(t, err).Required()
		gt.Value(t, departure.Kind).Equal(types.DepartureUnrecognized)
	})

	t.Run("departure without arrival", func(t *testing.T) {
		departure, err := env.uc.Attendance.ProcessDeparture(ctx, det(bobEnc, t0.Add(8*time.Hour)))
		gt.NoError(t, err).Required()
		gt.Value(t, departure.Kind).Equal(types.DepartureNotPresent)
		gt.Value(t, departure.Departure).Nil()
	})
}

func TestProcessDepartureCooldownIsolation(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t, usecase.WithCooldown(10*time.Minute))

	aliceEnc := enc(0.1, 0.2, 0.3, 0.4)
	env.enroll(t, "Alice", aliceEnc)

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)

	// The arrival burst must not consume departure tokens: the first
	// departure probe reaches the ledger (and fails its minimum-presence
	// check) instead of being throttled.
	departure, err := env.uc.Attendance.ProcessDeparture(ctx, det(aliceEnc, t0.Add(30*time.Second)))
	gt.NoError(t, err).Required()
	gt.Value(t, departure.Kind).Equal(types.DepartureTooSoon)

	// Now the departure bucket is empty.
	departure, err = env.uc.Attendance.ProcessDeparture(ctx, det(aliceEnc, t0.Add(45*time.Second)))
	gt.NoError(t, err).Required()
	gt.Value(t, departure.Kind).Equal(types.DepartureThrottled)
}
