package archive

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/utils/safe"
)

// GCS archives enrollment snapshots in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

var _ Service = &GCS{}

// NewGCS creates an archive on the given bucket. Credentials come from the
// ambient environment (ADC), same as the Firestore backend.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, goerr.New("archive bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	return &GCS{client: client, bucket: bucket}, nil
}

func (x *GCS) Store(ctx context.Context, personID model.PersonID, faceID model.FaceID, data []byte) (string, error) {
	if err := personID.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid archive target")
	}
	if err := faceID.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid archive target")
	}

	key := objectKey(personID, faceID)

	w := x.client.Bucket(x.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "image/jpeg"

	if _, err := w.Write(data); err != nil {
		safe.Close(ctx, w)
		return "", goerr.Wrap(err, "failed to write snapshot",
			goerr.V("bucket", x.bucket),
			goerr.V("key", key),
		)
	}
	// Close commits the object; an upload error can surface here.
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to commit snapshot",
			goerr.V("bucket", x.bucket),
			goerr.V("key", key),
		)
	}

	return key, nil
}

// Close releases the underlying storage client.
func (x *GCS) Close() error {
	return x.client.Close()
}
