package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Encoding is stored as firestore.Vector32 so that FindNearest vector
// search works server side.
type faceDocument struct {
	ID        string             `firestore:"id"`
	PersonID  string             `firestore:"person_id"`
	Encoding  firestore.Vector32 `firestore:"encoding"`
	Note      string             `firestore:"note"`
	CreatedAt time.Time          `firestore:"created_at"`
}

type faceRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newFaceRepository(client *firestore.Client) *faceRepository {
	return &faceRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *faceRepository) facesCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_faces"
	}
	return "faces"
}

func faceToDocument(sample *model.FaceSample) *faceDocument {
	return &faceDocument{
		ID:        string(sample.ID),
		PersonID:  string(sample.PersonID),
		Encoding:  firestore.Vector32(sample.Encoding.Float32()),
		Note:      sample.Note,
		CreatedAt: sample.CreatedAt,
	}
}

func faceToModel(doc *faceDocument) *model.FaceSample {
	return &model.FaceSample{
		ID:        model.FaceID(doc.ID),
		PersonID:  model.PersonID(doc.PersonID),
		Encoding:  types.EncodingFromFloat32([]float32(doc.Encoding)),
		Note:      doc.Note,
		CreatedAt: doc.CreatedAt,
	}
}

func (r *faceRepository) Create(ctx context.Context, sample *model.FaceSample) (*model.FaceSample, error) {
	created := *sample
	if created.ID == "" {
		created.ID = model.NewFaceID()
	}
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid face sample")
	}

	doc := faceToDocument(&created)

	docRef := r.client.Collection(r.facesCollection()).Doc(string(created.ID))
	if _, err := docRef.Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create face sample")
	}

	return faceToModel(doc), nil
}

func (r *faceRepository) Get(ctx context.Context, id model.FaceID) (*model.FaceSample, error) {
	docRef := r.client.Collection(r.facesCollection()).Doc(string(id))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "face sample not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get face sample", goerr.V("id", id))
	}

	var fDoc faceDocument
	if err := doc.DataTo(&fDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal face sample", goerr.V("id", id))
	}

	return faceToModel(&fDoc), nil
}

func (r *faceRepository) ListByPerson(ctx context.Context, personID model.PersonID) ([]*model.FaceSample, error) {
	iter := r.client.Collection(r.facesCollection()).
		Where("person_id", "==", string(personID)).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectFaces(iter)
}

func (r *faceRepository) ListAll(ctx context.Context) ([]*model.FaceSample, error) {
	iter := r.client.Collection(r.facesCollection()).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectFaces(iter)
}

func (r *faceRepository) Delete(ctx context.Context, id model.FaceID) error {
	docRef := r.client.Collection(r.facesCollection()).Doc(string(id))

	_, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "face sample not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get face sample", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete face sample", goerr.V("id", id))
	}

	return nil
}

func (r *faceRepository) DeleteByPerson(ctx context.Context, personID model.PersonID) error {
	iter := r.client.Collection(r.facesCollection()).
		Where("person_id", "==", string(personID)).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate face samples", goerr.V("person_id", personID))
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete face sample", goerr.V("person_id", personID))
		}
	}

	return nil
}

// FindNearest uses Firestore native vector search over the encoding field.
// The vector index is created by the migrate command.
func (r *faceRepository) FindNearest(ctx context.Context, encoding types.Encoding, limit int) ([]*model.FaceSample, error) {
	if err := encoding.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid query encoding")
	}

	vq := r.client.Collection(r.facesCollection()).
		FindNearest("encoding", firestore.Vector32(encoding.Float32()), limit, firestore.DistanceMeasureEuclidean, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	samples := make([]*model.FaceSample, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results")
		}

		var fDoc faceDocument
		if err := doc.DataTo(&fDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal face sample")
		}

		samples = append(samples, faceToModel(&fDoc))
	}

	return samples, nil
}

func collectFaces(iter *firestore.DocumentIterator) ([]*model.FaceSample, error) {
	var samples []*model.FaceSample
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate face samples")
		}

		var fDoc faceDocument
		if err := doc.DataTo(&fDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal face sample")
		}

		samples = append(samples, faceToModel(&fDoc))
	}

	return samples, nil
}
