package gormdb

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"gonum.org/v1/gonum/floats"
	"gorm.io/gorm"
)

type faceRow struct {
	ID        string          `gorm:"primaryKey;size:64"`
	PersonID  string          `gorm:"size:64;not null;index"`
	Encoding  json.RawMessage `gorm:"type:json;not null"`
	Note      string          `gorm:"size:255"`
	CreatedAt time.Time       `gorm:"type:datetime(6)"`
}

func (faceRow) TableName() string {
	return "face_samples"
}

func toFaceRow(face *model.FaceSample) (*faceRow, error) {
	raw, err := json.Marshal(face.Encoding)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal encoding", goerr.V("face_id", face.ID))
	}
	return &faceRow{
		ID:        string(face.ID),
		PersonID:  string(face.PersonID),
		Encoding:  raw,
		Note:      face.Note,
		CreatedAt: face.CreatedAt,
	}, nil
}

func (r *faceRow) toModel() (*model.FaceSample, error) {
	var encoding types.Encoding
	if err := json.Unmarshal(r.Encoding, &encoding); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal encoding", goerr.V("face_id", r.ID))
	}
	return &model.FaceSample{
		ID:        model.FaceID(r.ID),
		PersonID:  model.PersonID(r.PersonID),
		Encoding:  encoding,
		Note:      r.Note,
		CreatedAt: r.CreatedAt,
	}, nil
}

type faceRepository struct {
	db *gorm.DB
}

func (r *faceRepository) Create(ctx context.Context, face *model.FaceSample) (*model.FaceSample, error) {
	created := *face
	created.ID = model.NewFaceID()
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	created.Encoding = face.Encoding.Clone()

	if err := created.Validate(); err != nil {
		return nil, err
	}

	row, err := toFaceRow(&created)
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to create face sample", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *faceRepository) Get(ctx context.Context, id model.FaceID) (*model.FaceSample, error) {
	var row faceRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "face sample not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get face sample", goerr.V("id", id))
	}
	return row.toModel()
}

func (r *faceRepository) ListByPerson(ctx context.Context, personID model.PersonID) ([]*model.FaceSample, error) {
	var rows []faceRow
	if err := r.db.WithContext(ctx).Where("person_id = ?", string(personID)).Order("created_at").Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list face samples", goerr.V("person_id", personID))
	}
	return toFaceModels(rows)
}

func (r *faceRepository) ListAll(ctx context.Context) ([]*model.FaceSample, error) {
	var rows []faceRow
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list face samples")
	}
	return toFaceModels(rows)
}

func (r *faceRepository) Delete(ctx context.Context, id model.FaceID) error {
	result := r.db.WithContext(ctx).Delete(&faceRow{}, "id = ?", string(id))
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete face sample", goerr.V("id", id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "face sample not found", goerr.V("id", id))
	}
	return nil
}

func (r *faceRepository) DeleteByPerson(ctx context.Context, personID model.PersonID) error {
	if err := r.db.WithContext(ctx).Delete(&faceRow{}, "person_id = ?", string(personID)).Error; err != nil {
		return goerr.Wrap(err, "failed to delete face samples", goerr.V("person_id", personID))
	}
	return nil
}

// FindNearest loads all samples and ranks them by Euclidean distance in Go.
// MySQL has no native vector search, so this stays a full scan; galleries
// small enough for MySQL make that acceptable.
func (r *faceRepository) FindNearest(ctx context.Context, encoding types.Encoding, limit int) ([]*model.FaceSample, error) {
	if err := encoding.Validate(); err != nil {
		return nil, err
	}

	samples, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		sample   *model.FaceSample
		distance float64
	}

	candidates := make([]scored, 0, len(samples))
	for _, sample := range samples {
		if sample.Encoding.Dim() != encoding.Dim() {
			continue
		}
		candidates = append(candidates, scored{
			sample:   sample,
			distance: floats.Distance(encoding, sample.Encoding, 2),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]*model.FaceSample, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.sample)
	}
	return results, nil
}

func toFaceModels(rows []faceRow) ([]*model.FaceSample, error) {
	samples := make([]*model.FaceSample, 0, len(rows))
	for i := range rows {
		sample, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
