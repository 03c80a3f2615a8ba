package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/service/archive"
	"github.com/seiyo-lab/kaoban/pkg/service/facematch"
	"github.com/seiyo-lab/kaoban/pkg/utils/async"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
	"gonum.org/v1/gonum/floats"
)

// duplicateProbeLimit is how many nearest stored samples are inspected for
// the duplicate-identity warning. The person being enrolled may own several
// of the closest samples, so this is deliberately larger than one.
const duplicateProbeLimit = 8

// DuplicateWarning flags that a newly enrolled encoding lies within the
// acceptance distance of another person's sample. Enrollment proceeds; the
// warning tells the operator two registered identities may collide.
type DuplicateWarning struct {
	PersonID model.PersonID
	Distance float64
}

// EnrollUseCase manages the person registry and their reference encodings.
// Persistence is the source of truth; the in-memory gallery follows every
// change so matching reflects it immediately.
type EnrollUseCase struct {
	repo      interfaces.Repository
	gallery   *facematch.Gallery
	threshold float64
	archiver  archive.Service // nil disables photo archiving
}

func NewEnrollUseCase(repo interfaces.Repository, gallery *facematch.Gallery, threshold float64, archiver archive.Service) *EnrollUseCase {
	if threshold <= 0 {
		threshold = facematch.DefaultThreshold
	}
	return &EnrollUseCase{
		repo:      repo,
		gallery:   gallery,
		threshold: threshold,
		archiver:  archiver,
	}
}

// RegisterPerson creates a new registry entry. The ID is assigned by the
// repository when left empty.
func (uc *EnrollUseCase) RegisterPerson(ctx context.Context, person *model.Person) (*model.Person, error) {
	if person.Name == "" {
		return nil, goerr.New("person name is required")
	}

	created, err := uc.repo.Person().Create(ctx, person)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create person")
	}
	return created, nil
}

// GetPerson retrieves one registry entry.
func (uc *EnrollUseCase) GetPerson(ctx context.Context, personID model.PersonID) (*model.Person, error) {
	person, err := uc.repo.Person().Get(ctx, personID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrPersonNotFound, "no such person", goerr.V(PersonIDKey, personID))
		}
		return nil, goerr.Wrap(err, "failed to get person", goerr.V(PersonIDKey, personID))
	}
	return person, nil
}

// PersonStats summarizes the person's reference encodings by their spread
// around the average encoding.
func (uc *EnrollUseCase) PersonStats(ctx context.Context, personID model.PersonID) (*model.PersonStats, error) {
	samples, err := uc.repo.Face().ListByPerson(ctx, personID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list face samples", goerr.V(PersonIDKey, personID))
	}

	stats := &model.PersonStats{Samples: len(samples)}
	if len(samples) == 0 {
		return stats, nil
	}

	encodings := make([]types.Encoding, 0, len(samples))
	for _, sample := range samples {
		encodings = append(encodings, sample.Encoding)
	}
	centroid, err := facematch.AverageEncoding(encodings)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to average encodings", goerr.V(PersonIDKey, personID))
	}

	var total float64
	for _, encoding := range encodings {
		d := floats.Distance(centroid, encoding, 2)
		total += d
		if d > stats.MaxSpread {
			stats.MaxSpread = d
		}
	}
	stats.MeanSpread = total / float64(len(encodings))
	return stats, nil
}

// ListPeople retrieves all registry entries.
func (uc *EnrollUseCase) ListPeople(ctx context.Context) ([]*model.Person, error) {
	people, err := uc.repo.Person().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list people")
	}
	return people, nil
}

// AddFaceSample registers a reference encoding for an existing person. The
// sample is persisted first and registered in the gallery second; a gallery
// failure rolls the persisted sample back so storage and matching never
// drift apart. The returned warning is set when the encoding lies within
// the acceptance distance of another person's sample. When a photo is given
// and an archive is configured, the photo is stored asynchronously for
// audit.
func (uc *EnrollUseCase) AddFaceSample(ctx context.Context, personID model.PersonID, encoding types.Encoding, note string, photo []byte) (*model.FaceSample, *DuplicateWarning, error) {
	if _, err := uc.GetPerson(ctx, personID); err != nil {
		return nil, nil, err
	}

	warning := uc.duplicateWarning(ctx, personID, encoding)

	created, err := uc.repo.Face().Create(ctx, &model.FaceSample{
		PersonID: personID,
		Encoding: encoding,
		Note:     note,
	})
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to store face sample", goerr.V(PersonIDKey, personID))
	}

	if err := uc.gallery.Register(personID, created.Encoding); err != nil {
		// Roll back: a sample the gallery rejected must not resurface on
		// the next hydration.
		if delErr := uc.repo.Face().Delete(ctx, created.ID); delErr != nil {
			return nil, nil, goerr.Wrap(err, "failed to register encoding, and also failed to roll back face sample",
				goerr.V("rollback_error", delErr),
				goerr.V(FaceIDKey, created.ID))
		}
		return nil, nil, goerr.Wrap(err, "failed to register encoding", goerr.V(FaceIDKey, created.ID))
	}

	if uc.archiver != nil && len(photo) > 0 {
		uc.archivePhoto(ctx, created, photo)
	}

	return created, warning, nil
}

// DeletePerson removes a person, their stored samples, and their gallery
// encodings. Attendance history is kept; reports show such rows without a
// registry entry.
func (uc *EnrollUseCase) DeletePerson(ctx context.Context, personID model.PersonID) error {
	if _, err := uc.GetPerson(ctx, personID); err != nil {
		return err
	}

	if err := uc.repo.Face().DeleteByPerson(ctx, personID); err != nil {
		return goerr.Wrap(err, "failed to delete face samples", goerr.V(PersonIDKey, personID))
	}
	if err := uc.repo.Person().Delete(ctx, personID); err != nil {
		return goerr.Wrap(err, "failed to delete person", goerr.V(PersonIDKey, personID))
	}

	removed := uc.gallery.Remove(personID)
	logging.From(ctx).Info("person removed",
		"person_id", personID,
		"gallery_encodings", removed,
	)
	return nil
}

// duplicateWarning probes stored samples for another person within the
// acceptance distance. The warning is advisory: lookup failures are logged
// and enrollment continues.
func (uc *EnrollUseCase) duplicateWarning(ctx context.Context, personID model.PersonID, encoding types.Encoding) *DuplicateWarning {
	samples, err := uc.repo.Face().FindNearest(ctx, encoding, duplicateProbeLimit)
	if err != nil {
		logging.From(ctx).Warn("duplicate-identity probe failed",
			"person_id", personID,
			"error", err,
		)
		return nil
	}

	var warning *DuplicateWarning
	for _, sample := range samples {
		if sample.PersonID == personID {
			continue
		}
		if sample.Encoding.Dim() != encoding.Dim() {
			continue
		}
		distance := floats.Distance(encoding, sample.Encoding, 2)
		if distance > uc.threshold {
			continue
		}
		if warning == nil || distance < warning.Distance {
			warning = &DuplicateWarning{
				PersonID: sample.PersonID,
				Distance: distance,
			}
		}
	}
	return warning
}

func (uc *EnrollUseCase) archivePhoto(ctx context.Context, sample *model.FaceSample, photo []byte) {
	async.Dispatch(ctx, func(ctx context.Context) error {
		uri, err := uc.archiver.Store(ctx, sample.PersonID, sample.ID, photo)
		if err != nil {
			return goerr.Wrap(err, "failed to archive enrollment photo", goerr.V(FaceIDKey, sample.ID))
		}
		logging.From(ctx).Info("enrollment photo archived",
			"face_id", sample.ID,
			"uri", uri,
		)
		return nil
	})
}
