package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
)

// Firestore is the Cloud Firestore repository backend. Face encodings are
// stored as native vector fields so similarity search can run server side.
type Firestore struct {
	client     *firestore.Client
	person     *personRepository
	face       *faceRepository
	attendance *attendanceRepository
	tokens     *tokenRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, used by integration
// tests to isolate runs against a shared database.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.person.collectionPrefix = prefix
		f.face.collectionPrefix = prefix
		f.attendance.collectionPrefix = prefix
		f.tokens.collectionPrefix = prefix
	}
}

// New connects to the given project and database. An empty databaseID
// selects the default database.
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:     client,
		person:     newPersonRepository(client),
		face:       newFaceRepository(client),
		attendance: newAttendanceRepository(client),
		tokens:     newTokenRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Person() interfaces.PersonRepository {
	return f.person
}

func (f *Firestore) Face() interfaces.FaceRepository {
	return f.face
}

func (f *Firestore) Attendance() interfaces.AttendanceRepository {
	return f.attendance
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
