package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"gonum.org/v1/gonum/floats"
)

type faceRepository struct {
	mu    sync.RWMutex
	faces map[model.FaceID]*model.FaceSample
}

func newFaceRepository() *faceRepository {
	return &faceRepository{
		faces: make(map[model.FaceID]*model.FaceSample),
	}
}

// copyFace creates a deep copy of a face sample including its encoding
func copyFace(sample *model.FaceSample) *model.FaceSample {
	copied := *sample
	copied.Encoding = sample.Encoding.Clone()
	return &copied
}

func (r *faceRepository) Create(ctx context.Context, sample *model.FaceSample) (*model.FaceSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyFace(sample)
	if created.ID == "" {
		created.ID = model.NewFaceID()
	}
	created.CreatedAt = time.Now().UTC()

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid face sample")
	}

	r.faces[created.ID] = created
	return copyFace(created), nil
}

func (r *faceRepository) Get(ctx context.Context, id model.FaceID) (*model.FaceSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sample, exists := r.faces[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "face sample not found", goerr.V("id", id))
	}

	return copyFace(sample), nil
}

func (r *faceRepository) ListByPerson(ctx context.Context, personID model.PersonID) ([]*model.FaceSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var samples []*model.FaceSample
	for _, sample := range r.faces {
		if sample.PersonID == personID {
			samples = append(samples, copyFace(sample))
		}
	}

	sortFaces(samples)
	return samples, nil
}

func (r *faceRepository) ListAll(ctx context.Context) ([]*model.FaceSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	samples := make([]*model.FaceSample, 0, len(r.faces))
	for _, sample := range r.faces {
		samples = append(samples, copyFace(sample))
	}

	sortFaces(samples)
	return samples, nil
}

func (r *faceRepository) Delete(ctx context.Context, id model.FaceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.faces[id]; !exists {
		return goerr.Wrap(ErrNotFound, "face sample not found", goerr.V("id", id))
	}

	delete(r.faces, id)
	return nil
}

func (r *faceRepository) DeleteByPerson(ctx context.Context, personID model.PersonID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sample := range r.faces {
		if sample.PersonID == personID {
			delete(r.faces, id)
		}
	}

	return nil
}

func (r *faceRepository) FindNearest(ctx context.Context, encoding types.Encoding, limit int) ([]*model.FaceSample, error) {
	if err := encoding.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid query encoding")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		sample   *model.FaceSample
		distance float64
	}

	var candidates []scored
	for _, sample := range r.faces {
		if sample.Encoding.Dim() != encoding.Dim() {
			continue
		}
		d := floats.Distance(encoding, sample.Encoding, 2)
		candidates = append(candidates, scored{sample: copyFace(sample), distance: d})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	result := make([]*model.FaceSample, limit)
	for i := 0; i < limit; i++ {
		result[i] = candidates[i].sample
	}

	return result, nil
}

// sortFaces orders samples by creation time, then ID for a stable order
func sortFaces(samples []*model.FaceSample) {
	sort.Slice(samples, func(i, j int) bool {
		if !samples[i].CreatedAt.Equal(samples[j].CreatedAt) {
			return samples[i].CreatedAt.Before(samples[j].CreatedAt)
		}
		return samples[i].ID < samples[j].ID
	})
}
