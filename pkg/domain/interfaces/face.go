package interfaces

import (
	"context"

	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// FaceRepository defines the interface for FaceSample data persistence
type FaceRepository interface {
	// Create stores a new face sample
	Create(ctx context.Context, sample *model.FaceSample) (*model.FaceSample, error)

	// Get retrieves a face sample by ID
	Get(ctx context.Context, id model.FaceID) (*model.FaceSample, error)

	// ListByPerson retrieves all face samples registered for a person
	ListByPerson(ctx context.Context, personID model.PersonID) ([]*model.FaceSample, error)

	// ListAll retrieves every face sample; used to hydrate the in-memory
	// gallery at startup
	ListAll(ctx context.Context) ([]*model.FaceSample, error)

	// Delete deletes a face sample by ID
	Delete(ctx context.Context, id model.FaceID) error

	// DeleteByPerson deletes all face samples of a person
	DeleteByPerson(ctx context.Context, personID model.PersonID) error

	// FindNearest performs vector similarity search by Euclidean distance.
	// Returns up to limit samples closest to the given encoding.
	FindNearest(ctx context.Context, encoding types.Encoding, limit int) ([]*model.FaceSample, error)
}
