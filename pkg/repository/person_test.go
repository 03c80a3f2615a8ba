package repository_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
)

func runPersonRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create assigns ID and timestamps", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Person().Create(ctx, &model.Person{
			Name:       "Aoi Tanaka",
			Department: "Engineering",
			Title:      "Backend Engineer",
		})
		gt.NoError(t, err).Required()

		gt.Value(t, created.ID).NotEqual(model.PersonID(""))
		gt.Value(t, created.Name).Equal("Aoi Tanaka")
		gt.Value(t, created.Department).Equal("Engineering")
		gt.Bool(t, created.CreatedAt.IsZero()).False()
		gt.Bool(t, created.UpdatedAt.IsZero()).False()
	})

	t.Run("Create rejects person without name", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Person().Create(ctx, &model.Person{})
		gt.Error(t, err)
	})

	t.Run("Get retrieves created person", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Person().Create(ctx, &model.Person{
			Name:  "Hikari Sato",
			Title: "Security Analyst",
		})
		gt.NoError(t, err).Required()

		retrieved, err := repo.Person().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.ID).Equal(created.ID)
		gt.Value(t, retrieved.Name).Equal(created.Name)
		gt.Value(t, retrieved.Title).Equal(created.Title)
	})

	t.Run("Get returns error for unknown person", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Person().Get(ctx, model.NewPersonID())
		gt.Error(t, err)
	})

	t.Run("List returns people sorted by name", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, name := range []string{"Chika", "Aoi", "Botan"} {
			_, err := repo.Person().Create(ctx, &model.Person{Name: name})
			gt.NoError(t, err).Required()
		}

		people, err := repo.Person().List(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, people).Length(3)
		gt.Value(t, people[0].Name).Equal("Aoi")
		gt.Value(t, people[1].Name).Equal("Botan")
		gt.Value(t, people[2].Name).Equal("Chika")
	})

	t.Run("Update replaces fields and preserves CreatedAt", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Person().Create(ctx, &model.Person{
			Name:       "Mio Suzuki",
			Department: "Sales",
		})
		gt.NoError(t, err).Required()

		created.Department = "Marketing"
		created.Title = "Manager"

		updated, err := repo.Person().Update(ctx, created)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Department).Equal("Marketing")
		gt.Value(t, updated.Title).Equal("Manager")
		gt.Bool(t, updated.CreatedAt.Equal(created.CreatedAt)).True()

		retrieved, err := repo.Person().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.Department).Equal("Marketing")
	})

	t.Run("Update returns error for unknown person", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Person().Update(ctx, &model.Person{
			ID:   model.NewPersonID(),
			Name: "Nobody",
		})
		gt.Error(t, err)
	})

	t.Run("Delete removes person", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Person().Create(ctx, &model.Person{Name: "Rin Watanabe"})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Person().Delete(ctx, created.ID)).Required()

		_, err = repo.Person().Get(ctx, created.ID)
		gt.Error(t, err)
	})

	t.Run("Delete returns error for unknown person", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		gt.Error(t, repo.Person().Delete(ctx, model.NewPersonID()))
	})
}

func TestPersonRepository_Memory(t *testing.T) {
	runPersonRepositoryTest(t, newMemoryRepository)
}

func TestPersonRepository_Firestore(t *testing.T) {
	runPersonRepositoryTest(t, newFirestoreRepository)
}

func TestPersonRepository_MySQL(t *testing.T) {
	runPersonRepositoryTest(t, newMySQLRepository)
}
