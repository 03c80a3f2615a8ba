package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type personDocument struct {
	ID         string    `firestore:"id"`
	Name       string    `firestore:"name"`
	Department string    `firestore:"department"`
	Title      string    `firestore:"title"`
	CreatedAt  time.Time `firestore:"created_at"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

type personRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newPersonRepository(client *firestore.Client) *personRepository {
	return &personRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *personRepository) peopleCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_people"
	}
	return "people"
}

func personToDocument(person *model.Person) *personDocument {
	return &personDocument{
		ID:         string(person.ID),
		Name:       person.Name,
		Department: person.Department,
		Title:      person.Title,
		CreatedAt:  person.CreatedAt,
		UpdatedAt:  person.UpdatedAt,
	}
}

func personToModel(doc *personDocument) *model.Person {
	return &model.Person{
		ID:         model.PersonID(doc.ID),
		Name:       doc.Name,
		Department: doc.Department,
		Title:      doc.Title,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func (r *personRepository) Create(ctx context.Context, person *model.Person) (*model.Person, error) {
	// Firestore keeps microsecond precision; truncate so the returned model
	// equals what a later Get reads back.
	now := time.Now().UTC().Truncate(time.Microsecond)
	created := *person
	if created.ID == "" {
		created.ID = model.NewPersonID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid person")
	}

	doc := personToDocument(&created)

	docRef := r.client.Collection(r.peopleCollection()).Doc(string(created.ID))
	if _, err := docRef.Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create person")
	}

	return personToModel(doc), nil
}

func (r *personRepository) Get(ctx context.Context, id model.PersonID) (*model.Person, error) {
	docRef := r.client.Collection(r.peopleCollection()).Doc(string(id))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get person", goerr.V("id", id))
	}

	var pDoc personDocument
	if err := doc.DataTo(&pDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal person", goerr.V("id", id))
	}

	return personToModel(&pDoc), nil
}

func (r *personRepository) List(ctx context.Context) ([]*model.Person, error) {
	iter := r.client.Collection(r.peopleCollection()).Documents(ctx)
	defer iter.Stop()

	var people []*model.Person
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate people")
		}

		var pDoc personDocument
		if err := doc.DataTo(&pDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal person")
		}

		people = append(people, personToModel(&pDoc))
	}

	sort.Slice(people, func(i, j int) bool {
		return people[i].Name < people[j].Name
	})

	return people, nil
}

func (r *personRepository) Update(ctx context.Context, person *model.Person) (*model.Person, error) {
	docRef := r.client.Collection(r.peopleCollection()).Doc(string(person.ID))

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", person.ID))
		}
		return nil, goerr.Wrap(err, "failed to get person", goerr.V("id", person.ID))
	}

	var existing personDocument
	if err := doc.DataTo(&existing); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal person", goerr.V("id", person.ID))
	}

	updated := *person
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := updated.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid person")
	}

	uDoc := personToDocument(&updated)
	if _, err := docRef.Set(ctx, uDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to update person", goerr.V("id", person.ID))
	}

	return personToModel(uDoc), nil
}

func (r *personRepository) Delete(ctx context.Context, id model.PersonID) error {
	docRef := r.client.Collection(r.peopleCollection()).Doc(string(id))

	_, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get person", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete person", goerr.V("id", id))
	}

	return nil
}
