package repository_test

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/repository/firestore"
)

// testEncoding builds an encoding of the given dimension. Component values
// stay exactly representable in float32 so they survive the Firestore
// Vector32 round trip unchanged.
func testEncoding(dim int, offset float64, marks ...float64) types.Encoding {
	enc := make(types.Encoding, dim)
	enc[0] = offset
	for i, v := range marks {
		enc[i+1] = v
	}
	return enc
}

func runFaceRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create assigns ID and preserves encoding", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		person, err := repo.Person().Create(ctx, &model.Person{Name: "Aoi Tanaka"})
		gt.NoError(t, err).Required()

		enc := testEncoding(model.DefaultEncodingDim, 0, 0.5, 0.25, 1.0)
		created, err := repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: enc,
			Note:     "entrance camera",
		})
		gt.NoError(t, err).Required()

		gt.Value(t, created.ID).NotEqual(model.FaceID(""))
		gt.Value(t, created.PersonID).Equal(person.ID)
		gt.Bool(t, created.CreatedAt.IsZero()).False()

		retrieved, err := repo.Face().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.Encoding.Dim()).Equal(model.DefaultEncodingDim)
		gt.Value(t, retrieved.Encoding[1]).Equal(0.5)
		gt.Value(t, retrieved.Encoding[2]).Equal(0.25)
		gt.Value(t, retrieved.Encoding[3]).Equal(1.0)
		gt.Value(t, retrieved.Note).Equal("entrance camera")
	})

	t.Run("Create rejects non-finite encoding", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		person, err := repo.Person().Create(ctx, &model.Person{Name: "Hikari Sato"})
		gt.NoError(t, err).Required()

		enc := testEncoding(model.DefaultEncodingDim, 0)
		enc[5] = math.NaN()

		_, err = repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: enc,
		})
		gt.Error(t, err)
	})

	t.Run("Create rejects empty encoding", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		person, err := repo.Person().Create(ctx, &model.Person{Name: "Mio Suzuki"})
		gt.NoError(t, err).Required()

		_, err = repo.Face().Create(ctx, &model.FaceSample{PersonID: person.ID})
		gt.Error(t, err)
	})

	t.Run("Get returns error for unknown sample", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Face().Get(ctx, model.NewFaceID())
		gt.Error(t, err)
	})

	t.Run("ListByPerson returns only that person's samples in creation order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		alice, err := repo.Person().Create(ctx, &model.Person{Name: "Alice"})
		gt.NoError(t, err).Required()
		bob, err := repo.Person().Create(ctx, &model.Person{Name: "Bob"})
		gt.NoError(t, err).Required()

		first, err := repo.Face().Create(ctx, &model.FaceSample{
			PersonID: alice.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 0.5),
		})
		gt.NoError(t, err).Required()

		second, err := repo.Face().Create(ctx, &model.FaceSample{
			PersonID: alice.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 0.25),
		})
		gt.NoError(t, err).Required()

		_, err = repo.Face().Create(ctx, &model.FaceSample{
			PersonID: bob.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 1.0),
		})
		gt.NoError(t, err).Required()

		samples, err := repo.Face().ListByPerson(ctx, alice.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, samples).Length(2)
		gt.Value(t, samples[0].ID).Equal(first.ID)
		gt.Value(t, samples[1].ID).Equal(second.ID)
	})

	t.Run("ListAll returns samples of every person", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, name := range []string{"Carol", "Dan"} {
			person, err := repo.Person().Create(ctx, &model.Person{Name: name})
			gt.NoError(t, err).Required()

			_, err = repo.Face().Create(ctx, &model.FaceSample{
				PersonID: person.ID,
				Encoding: testEncoding(model.DefaultEncodingDim, 0, 0.5),
			})
			gt.NoError(t, err).Required()
		}

		samples, err := repo.Face().ListAll(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, samples).Length(2)
	})

	t.Run("Delete removes a single sample", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		person, err := repo.Person().Create(ctx, &model.Person{Name: "Erin"})
		gt.NoError(t, err).Required()

		created, err := repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 0.5),
		})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Face().Delete(ctx, created.ID)).Required()

		_, err = repo.Face().Get(ctx, created.ID)
		gt.Error(t, err)
	})

	t.Run("DeleteByPerson removes all samples of the person", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		person, err := repo.Person().Create(ctx, &model.Person{Name: "Frank"})
		gt.NoError(t, err).Required()

		for i := 0; i < 3; i++ {
			_, err := repo.Face().Create(ctx, &model.FaceSample{
				PersonID: person.ID,
				Encoding: testEncoding(model.DefaultEncodingDim, float64(i), 0.5),
			})
			gt.NoError(t, err).Required()
		}

		gt.NoError(t, repo.Face().DeleteByPerson(ctx, person.ID)).Required()

		samples, err := repo.Face().ListByPerson(ctx, person.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, samples).Length(0)
	})
}

// runFindNearestTest exercises similarity search ranking. It runs against
// backends that rank in-process; the Firestore variant lives in its own test
// because it depends on the provisioned vector index.
func runFindNearestTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("returns samples ordered by distance with limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		person, err := repo.Person().Create(ctx, &model.Person{Name: "Grace"})
		gt.NoError(t, err).Required()

		near, err := repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 0.25),
		})
		gt.NoError(t, err).Required()

		mid, err := repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 1.0),
		})
		gt.NoError(t, err).Required()

		_, err = repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 4.0),
		})
		gt.NoError(t, err).Required()

		results, err := repo.Face().FindNearest(ctx, testEncoding(model.DefaultEncodingDim, 0), 2)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
		gt.Value(t, results[0].ID).Equal(near.ID)
		gt.Value(t, results[1].ID).Equal(mid.ID)
	})

	t.Run("skips samples of a different dimension", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		person, err := repo.Person().Create(ctx, &model.Person{Name: "Heidi"})
		gt.NoError(t, err).Required()

		matching, err := repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: testEncoding(model.DefaultEncodingDim, 0, 0.5),
		})
		gt.NoError(t, err).Required()

		_, err = repo.Face().Create(ctx, &model.FaceSample{
			PersonID: person.ID,
			Encoding: testEncoding(64, 0, 0.5),
		})
		gt.NoError(t, err).Required()

		results, err := repo.Face().FindNearest(ctx, testEncoding(model.DefaultEncodingDim, 0), 10)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].ID).Equal(matching.ID)
	})

	t.Run("returns empty when no samples exist", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		results, err := repo.Face().FindNearest(ctx, testEncoding(model.DefaultEncodingDim, 0), 5)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})

	t.Run("rejects invalid query encoding", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Face().FindNearest(ctx, types.Encoding{}, 5)
		gt.Error(t, err)
	})
}

func TestFaceRepository_Memory(t *testing.T) {
	runFaceRepositoryTest(t, newMemoryRepository)
}

func TestFaceRepository_Firestore(t *testing.T) {
	runFaceRepositoryTest(t, newFirestoreRepository)
}

func TestFaceRepository_MySQL(t *testing.T) {
	runFaceRepositoryTest(t, newMySQLRepository)
}

func TestFaceFindNearest_Memory(t *testing.T) {
	runFindNearestTest(t, newMemoryRepository)
}

func TestFaceFindNearest_MySQL(t *testing.T) {
	runFindNearestTest(t, newMySQLRepository)
}

// TestFaceFindNearest_Firestore runs against the unprefixed collections of
// the test project, which must carry the vector index created by the migrate
// command. Vectors are placed at a per-run offset so results do not collide
// with leftovers from earlier runs.
func TestFaceFindNearest_Firestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})

	person, err := repo.Person().Create(ctx, &model.Person{Name: "Vector Probe"})
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Face().DeleteByPerson(context.Background(), person.ID))
		gt.NoError(t, repo.Person().Delete(context.Background(), person.ID))
	})

	// Integer offsets below 2^24 are exact in float32.
	offset := float64(time.Now().UnixNano() % 10_000_000)

	near, err := repo.Face().Create(ctx, &model.FaceSample{
		PersonID: person.ID,
		Encoding: testEncoding(model.DefaultEncodingDim, offset, 0.25),
	})
	gt.NoError(t, err).Required()

	mid, err := repo.Face().Create(ctx, &model.FaceSample{
		PersonID: person.ID,
		Encoding: testEncoding(model.DefaultEncodingDim, offset, 1.0),
	})
	gt.NoError(t, err).Required()

	results, err := repo.Face().FindNearest(ctx, testEncoding(model.DefaultEncodingDim, offset), 2)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(2)
	gt.Value(t, results[0].ID).Equal(near.ID)
	gt.Value(t, results[1].ID).Equal(mid.ID)
}
