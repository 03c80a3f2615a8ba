package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type tokenDocument struct {
	ID        string    `firestore:"id"`
	Secret    string    `firestore:"secret"`
	Sub       string    `firestore:"sub"`
	Role      string    `firestore:"role"`
	CreatedAt time.Time `firestore:"created_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

type tokenRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newTokenRepository(client *firestore.Client) *tokenRepository {
	return &tokenRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *tokenRepository) tokensCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_tokens"
	}
	return "tokens"
}

func (f *Firestore) PutToken(ctx context.Context, token *auth.Token) error {
	if err := token.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token")
	}

	doc := &tokenDocument{
		ID:        string(token.ID),
		Secret:    string(token.Secret),
		Sub:       token.Sub,
		Role:      string(token.Role),
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	}

	docRef := f.client.Collection(f.tokens.tokensCollection()).Doc(string(token.ID))
	if _, err := docRef.Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put token")
	}

	return nil
}

func (f *Firestore) GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	if err := tokenID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid token ID")
	}

	docRef := f.client.Collection(f.tokens.tokensCollection()).Doc(string(tokenID))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
		}
		return nil, goerr.Wrap(err, "failed to get token", goerr.V("token_id", tokenID))
	}

	var tDoc tokenDocument
	if err := doc.DataTo(&tDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal token", goerr.V("token_id", tokenID))
	}

	return &auth.Token{
		ID:        auth.TokenID(tDoc.ID),
		Secret:    auth.TokenSecret(tDoc.Secret),
		Sub:       tDoc.Sub,
		Role:      types.Role(tDoc.Role),
		CreatedAt: tDoc.CreatedAt,
		ExpiresAt: tDoc.ExpiresAt,
	}, nil
}

func (f *Firestore) DeleteToken(ctx context.Context, tokenID auth.TokenID) error {
	if err := tokenID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token ID")
	}

	docRef := f.client.Collection(f.tokens.tokensCollection()).Doc(string(tokenID))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
		}
		return goerr.Wrap(err, "failed to get token", goerr.V("token_id", tokenID))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete token", goerr.V("token_id", tokenID))
	}

	return nil
}
