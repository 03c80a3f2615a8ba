package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// TokenID identifies a persisted operator session.
type TokenID string

// NewTokenID generates a new UUID v4 TokenID
func NewTokenID() TokenID {
	return TokenID(uuid.New().String())
}

// String returns the string representation of TokenID
func (x TokenID) String() string {
	return string(x)
}

// Validate checks if the TokenID is valid
func (x TokenID) Validate() error {
	if x == "" {
		return goerr.New("token ID cannot be empty")
	}
	return nil
}

// TokenSecret is the per-session random secret embedded in the signed JWT.
// A stolen signing key alone is not enough to forge a session; the secret
// must also match the persisted one.
type TokenSecret string

// NewTokenSecret generates a new random TokenSecret
func NewTokenSecret() TokenSecret {
	return TokenSecret(uuid.New().String())
}

// Token is a persisted operator session. Sessions are revocable: logout
// deletes the token, invalidating the JWT that references it.
type Token struct {
	ID        TokenID
	Secret    TokenSecret
	Sub       string // operator account name
	Role      types.Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewToken creates a session token for the given operator.
func NewToken(sub string, role types.Role, ttl time.Duration) *Token {
	now := time.Now()
	return &Token{
		ID:        NewTokenID(),
		Secret:    NewTokenSecret(),
		Sub:       sub,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Validate checks the required fields of the token
func (x *Token) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return err
	}
	if x.Secret == "" {
		return goerr.New("token secret cannot be empty", goerr.V("token_id", x.ID))
	}
	if x.Sub == "" {
		return goerr.New("token subject cannot be empty", goerr.V("token_id", x.ID))
	}
	if !x.Role.IsValid() {
		return goerr.New("invalid token role", goerr.V("token_id", x.ID), goerr.V("role", x.Role))
	}
	if x.ExpiresAt.IsZero() {
		return goerr.New("token expiry is required", goerr.V("token_id", x.ID))
	}
	return nil
}

// Expired reports whether the token has passed its expiry.
func (x *Token) Expired(now time.Time) bool {
	return now.After(x.ExpiresAt)
}

type ctxTokenKey struct{}

// ContextWithToken returns a context carrying the validated session token.
func ContextWithToken(ctx context.Context, token *Token) context.Context {
	return context.WithValue(ctx, ctxTokenKey{}, token)
}

// TokenFromContext extracts the session token set by the auth middleware.
func TokenFromContext(ctx context.Context) (*Token, bool) {
	token, ok := ctx.Value(ctxTokenKey{}).(*Token)
	return token, ok
}
