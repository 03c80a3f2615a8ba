package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
)

type personRepository struct {
	mu     sync.RWMutex
	people map[model.PersonID]*model.Person
}

func newPersonRepository() *personRepository {
	return &personRepository{
		people: make(map[model.PersonID]*model.Person),
	}
}

// copyPerson creates a deep copy of a person
func copyPerson(person *model.Person) *model.Person {
	copied := *person
	return &copied
}

func (r *personRepository) Create(ctx context.Context, person *model.Person) (*model.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := copyPerson(person)
	if created.ID == "" {
		created.ID = model.NewPersonID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid person")
	}

	r.people[created.ID] = created
	return copyPerson(created), nil
}

func (r *personRepository) Get(ctx context.Context, id model.PersonID) (*model.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	person, exists := r.people[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", id))
	}

	return copyPerson(person), nil
}

func (r *personRepository) List(ctx context.Context) ([]*model.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	people := make([]*model.Person, 0, len(r.people))
	for _, person := range r.people {
		people = append(people, copyPerson(person))
	}

	sort.Slice(people, func(i, j int) bool {
		return people[i].Name < people[j].Name
	})

	return people, nil
}

func (r *personRepository) Update(ctx context.Context, person *model.Person) (*model.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.people[person.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", person.ID))
	}

	updated := copyPerson(person)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if err := updated.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid person")
	}

	r.people[updated.ID] = updated
	return copyPerson(updated), nil
}

func (r *personRepository) Delete(ctx context.Context, id model.PersonID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.people[id]; !exists {
		return goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", id))
	}

	delete(r.people, id)
	return nil
}
