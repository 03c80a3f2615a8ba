package interfaces

import (
	"context"

	"github.com/seiyo-lab/kaoban/pkg/domain/model"
)

// PersonRepository defines the interface for Person data persistence
type PersonRepository interface {
	// Create creates a new person
	Create(ctx context.Context, person *model.Person) (*model.Person, error)

	// Get retrieves a person by ID
	Get(ctx context.Context, id model.PersonID) (*model.Person, error)

	// List retrieves all registered people
	List(ctx context.Context) ([]*model.Person, error)

	// Update replaces the stored person
	Update(ctx context.Context, person *model.Person) (*model.Person, error)

	// Delete deletes a person by ID
	Delete(ctx context.Context, id model.PersonID) error
}
