package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/service/archive"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
)

func TestRegisterPerson(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t)

	t.Run("assigns identity and timestamps", func(t *testing.T) {
		person, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{
			Name:       "Aoi Sato",
			Department: "Engineering",
			Title:      "SRE",
		})
		gt.NoError(t, err).Required()
		gt.Value(t, person.ID).NotEqual(model.PersonID(""))
		gt.Value(t, person.Name).Equal("Aoi Sato")
		gt.Bool(t, person.CreatedAt.IsZero()).False()
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Department: "Engineering"})
		gt.Error(t, err)
	})
}

func TestGetAndListPeople(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t)

	alice, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: "Alice"})
	gt.NoError(t, err).Required()
	_, err = env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: "Bob"})
	gt.NoError(t, err).Required()

	got, err := env.uc.Enroll.GetPerson(ctx, alice.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Name).Equal("Alice")

	_, err = env.uc.Enroll.GetPerson(ctx, "no-such-person")
	gt.Error(t, err).Required()
	gt.Bool(t, errors.Is(err, usecase.ErrPersonNotFound)).True()

	people, err := env.uc.Enroll.ListPeople(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, people).Length(2)
}

func TestAddFaceSample(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and registers the encoding", func(t *testing.T) {
		env := newPipelineEnv(t)
		person, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: "Alice"})
		gt.NoError(t, err).Required()

		sample, warning, err := env.uc.Enroll.AddFaceSample(ctx, person.ID, enc(0.1, 0.2, 0.3, 0.4), "front", nil)
		gt.NoError(t, err).Required()
		gt.Value(t, warning).Nil()
		gt.Value(t, sample.ID).NotEqual(model.FaceID(""))
		gt.Value(t, sample.Note).Equal("front")

		stored, err := env.repo.Face().ListByPerson(ctx, person.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, stored).Length(1)
		gt.Value(t, env.gallery.Len()).Equal(1)
	})

	t.Run("own samples raise no duplicate warning", func(t *testing.T) {
		env := newPipelineEnv(t)
		alice := env.enroll(t, "Alice", enc(0.1, 0.2, 0.3, 0.4))

		_, warning, err := env.uc.Enroll.AddFaceSample(ctx, alice, enc(0.12, 0.2, 0.3, 0.4), "left profile", nil)
		gt.NoError(t, err).Required()
		gt.Value(t, warning).Nil()
		gt.Value(t, env.gallery.Len()).Equal(2)
	})

	t.Run("warns when another identity is too close", func(t *testing.T) {
		env := newPipelineEnv(t)
		alice := env.enroll(t, "Alice", enc(0.1, 0.2, 0.3, 0.4))
		bob, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: "Bob"})
		gt.NoError(t, err).Required()

		_, warning, err := env.uc.Enroll.AddFaceSample(ctx, bob.ID, enc(0.2, 0.2, 0.3, 0.4), "", nil)
		gt.NoError(t, err).Required()
		gt.Value(t, warning).NotNil().Required()
		gt.Value(t, warning.PersonID).Equal(alice)
		gt.Number(t, warning.Distance).GreaterOrEqual(0.09)

		// The warning is advisory; the sample is enrolled regardless.
		gt.Value(t, env.gallery.Len()).Equal(2)
	})

	t.Run("unknown person is rejected", func(t *testing.T) {
		env := newPipelineEnv(t)
		_, _, err := env.uc.Enroll.AddFaceSample(ctx, "ghost", enc(0.1, 0.2, 0.3, 0.4), "", nil)
		gt.Error(t, err).Required()
		gt.Bool(t, errors.Is(err, usecase.ErrPersonNotFound)).True()
	})

	t.Run("dimension conflict rolls the sample back", func(t *testing.T) {
		env := newPipelineEnv(t)
		env.enroll(t, "Alice", enc(0.1, 0.2, 0.3, 0.4))
		bob, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: "Bob"})
		gt.NoError(t, err).Required()

		_, _, err = env.uc.Enroll.AddFaceSample(ctx, bob.ID, enc(0.1, 0.2, 0.3), "", nil)
		gt.Error(t, err).Required()
		gt.Bool(t, errors.Is(err, model.ErrInvalidEncoding)).True()

		stored, err := env.repo.Face().ListByPerson(ctx, bob.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, stored).Length(0)
		gt.Value(t, env.gallery.Len()).Equal(1)
	})
}

func TestAddFaceSampleArchive(t *testing.T) {
	ctx := context.Background()
	arch := archive.NewMemory()
	env := newPipelineEnv(t, usecase.WithArchive(arch))

	person, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: "Alice"})
	gt.NoError(t, err).Required()

	photo := []byte{0xff, 0xd8, 0xff, 0xe0}
	sample, _, err := env.uc.Enroll.AddFaceSample(ctx, person.ID, enc(0.1, 0.2, 0.3, 0.4), "", photo)
	gt.NoError(t, err).Required()

	// Archiving is asynchronous.
	deadline := time.Now().Add(time.Second)
	for arch.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	gt.Value(t, arch.Len()).Equal(1)

	stored, ok := arch.Get(fmt.Sprintf("people/%s/%s.jpg", person.ID, sample.ID))
	gt.Bool(t, ok).True()
	gt.Value(t, stored).Equal(photo)
}

func TestPersonStats(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t)

	person, err := env.uc.Enroll.RegisterPerson(ctx, &model.Person{Name: "Alice"})
	gt.NoError(t, err).Required()

	t.Run("no samples yet", func(t *testing.T) {
		stats, err := env.uc.Enroll.PersonStats(ctx, person.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stats.Samples).Equal(0)
		gt.Value(t, stats.MeanSpread).Equal(0.0)
	})

	t.Run("single sample has zero spread", func(t *testing.T) {
		_, _, err := env.uc.Enroll.AddFaceSample(ctx, person.ID, enc(1.0, 0, 0, 0), "front", nil)
		gt.NoError(t, err).Required()

		stats, err := env.uc.Enroll.PersonStats(ctx, person.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stats.Samples).Equal(1)
		gt.Value(t, stats.MeanSpread).Equal(0.0)
		gt.Value(t, stats.MaxSpread).Equal(0.0)
	})

	t.Run("spread measured from the centroid", func(t *testing.T) {
		// Samples at 1.0 and 3.0 average to 2.0, one unit from each.
		_, _, err := env.uc.Enroll.AddFaceSample(ctx, person.ID, enc(3.0, 0, 0, 0), "left", nil)
		gt.NoError(t, err).Required()

		stats, err := env.uc.Enroll.PersonStats(ctx, person.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stats.Samples).Equal(2)
		gt.Value(t, stats.MeanSpread).Equal(1.0)
		gt.Value(t, stats.MaxSpread).Equal(1.0)
	})
}

func TestDeletePerson(t *testing.T) {
	ctx := context.Background()
	env := newPipelineEnv(t)

	aliceEnc := enc(0.1, 0.2, 0.3, 0.4)
	bobEnc := enc(0.9, 0.8, 0.7, 0.6)
	alice := env.enroll(t, "Alice", aliceEnc)
	bob := env.enroll(t, "Bob", bobEnc)

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0))
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)
	waitEvent(t, env.events)

	gt.NoError(t, env.uc.Enroll.DeletePerson(ctx, alice)).Required()

	t.Run("registry entry is gone", func(t *testing.T) {
		_, err := env.uc.Enroll.GetPerson(ctx, alice)
		gt.Error(t, err).Required()
		gt.Bool(t, errors.Is(err, usecase.ErrPersonNotFound)).True()
	})

	t.Run("stored samples are gone", func(t *testing.T) {
		stored, err := env.repo.Face().ListByPerson(ctx, alice)
		gt.NoError(t, err).Required()
		gt.Array(t, stored).Length(0)
	})

	t.Run("deleted person stops matching immediately", func(t *testing.T) {
		outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(aliceEnc, t0.Add(time.Hour)))
		gt.NoError(t, err).Required()
		gt.Value(t, outcome.Kind).Equal(types.OutcomeUnrecognized)
	})

	t.Run("others are unaffected", func(t *testing.T) {
		outcome, err := env.uc.Attendance.ProcessDetection(ctx, det(bobEnc, t0.Add(time.Hour)))
		gt.NoError(t, err).Required()
		gt.Value(t, outcome.Kind).Equal(types.OutcomeRecorded)
		gt.Value(t, outcome.PersonID).Equal(bob)
		waitEvent(t, env.events)
	})

	t.Run("attendance history survives", func(t *testing.T) {
		records, err := env.repo.Attendance().ListRecordsByDate(ctx, types.DateKey("2026-02-10"))
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(2)
	})

	t.Run("deleting an unknown person fails", func(t *testing.T) {
		err := env.uc.Enroll.DeletePerson(ctx, alice)
		gt.Error(t, err).Required()
		gt.Bool(t, errors.Is(err, usecase.ErrPersonNotFound)).True()
	})
}
