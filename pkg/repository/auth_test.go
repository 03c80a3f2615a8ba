package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

func newTestToken(sub string) *auth.Token {
	token := auth.NewToken(sub, types.RoleAdmin, time.Hour)
	// Backends keep microsecond precision at best.
	token.CreatedAt = token.CreatedAt.UTC().Truncate(time.Millisecond)
	token.ExpiresAt = token.ExpiresAt.UTC().Truncate(time.Millisecond)
	return token
}

func runTokenRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("PutToken and GetToken round-trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		token := newTestToken("operator@example.com")
		gt.NoError(t, repo.PutToken(ctx, token)).Required()

		retrieved, err := repo.GetToken(ctx, token.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.ID).Equal(token.ID)
		gt.Value(t, retrieved.Secret).Equal(token.Secret)
		gt.Value(t, retrieved.Sub).Equal("operator@example.com")
		gt.Value(t, retrieved.Role).Equal(types.RoleAdmin)
		gt.Bool(t, retrieved.ExpiresAt.Equal(token.ExpiresAt)).True()
	})

	t.Run("GetToken returns error for unknown ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetToken(ctx, auth.NewTokenID())
		gt.Error(t, err)
	})

	t.Run("PutToken rejects invalid token", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		token := newTestToken("operator@example.com")
		token.Sub = ""
		gt.Error(t, repo.PutToken(ctx, token))
	})

	t.Run("DeleteToken revokes the session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		token := newTestToken("operator@example.com")
		gt.NoError(t, repo.PutToken(ctx, token)).Required()

		gt.NoError(t, repo.DeleteToken(ctx, token.ID)).Required()

		_, err := repo.GetToken(ctx, token.ID)
		gt.Error(t, err)
	})

	t.Run("DeleteToken returns error for unknown ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		gt.Error(t, repo.DeleteToken(ctx, auth.NewTokenID()))
	})
}

func TestTokenRepository_Memory(t *testing.T) {
	runTokenRepositoryTest(t, newMemoryRepository)
}

func TestTokenRepository_Firestore(t *testing.T) {
	runTokenRepositoryTest(t, newFirestoreRepository)
}

func TestTokenRepository_MySQL(t *testing.T) {
	runTokenRepositoryTest(t, newMySQLRepository)
}
