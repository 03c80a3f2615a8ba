package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
)

// Service stores enrollment snapshots for audit. The bytes are opaque to
// the engine; nothing here or downstream decodes them.
type Service interface {
	// Store archives the registration snapshot of a face sample and returns
	// the object key it was written under.
	Store(ctx context.Context, personID model.PersonID, faceID model.FaceID, data []byte) (string, error)
}

// objectKey lays snapshots out per person so an audit can pull everything
// registered for one identity with a prefix listing.
func objectKey(personID model.PersonID, faceID model.FaceID) string {
	return fmt.Sprintf("people/%s/%s.jpg", personID, faceID)
}

// Memory keeps archived snapshots in a map. Used in tests and available as
// a stand-in when no bucket is configured but archiving must be observable.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ Service = &Memory{}

// NewMemory creates an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (x *Memory) Store(ctx context.Context, personID model.PersonID, faceID model.FaceID, data []byte) (string, error) {
	if err := personID.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid archive target")
	}
	if err := faceID.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid archive target")
	}

	key := objectKey(personID, faceID)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.objects[key] = append([]byte(nil), data...)
	return key, nil
}

// Get returns an archived snapshot by key.
func (x *Memory) Get(key string) ([]byte, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	data, ok := x.objects[key]
	return data, ok
}

// Len returns the number of archived snapshots.
func (x *Memory) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.objects)
}
