package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
	"golang.org/x/crypto/bcrypt"
)

// DefaultSessionTTL bounds how long a login stays valid without
// re-authenticating.
const DefaultSessionTTL = 12 * time.Hour

// secretClaim is the JWT claim carrying the per-session random secret. The
// signed JWT alone is not a session: the secret must also match the
// persisted token, so a leaked signing key cannot forge one.
const secretClaim = "secret"

// Operator is one account from the policy file: a name, a bcrypt password
// hash, and a role. Plaintext passwords never reach the engine.
type Operator struct {
	Name         string
	PasswordHash string
	Role         types.Role
}

// AuthUseCase authenticates operators against the configured accounts and
// manages their sessions. Sessions are persisted and revocable; the JWT is
// only a reference to one.
type AuthUseCase struct {
	repo       interfaces.Repository
	operators  map[string]Operator
	signingKey []byte
	ttl        time.Duration
	cache      *authCache
}

// AuthOption is a functional option for AuthUseCase
type AuthOption func(*AuthUseCase)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) AuthOption {
	return func(uc *AuthUseCase) {
		if ttl != 0 {
			uc.ttl = ttl
		}
	}
}

func NewAuthUseCase(repo interfaces.Repository, operators []Operator, signingKey []byte, options ...AuthOption) (*AuthUseCase, error) {
	if len(signingKey) == 0 {
		return nil, goerr.New("auth signing key is required")
	}

	accounts := make(map[string]Operator, len(operators))
	for _, op := range operators {
		if op.Name == "" {
			return nil, goerr.New("operator name is required")
		}
		if op.PasswordHash == "" {
			return nil, goerr.New("operator password hash is required", goerr.V("operator", op.Name))
		}
		if !op.Role.IsValid() {
			return nil, goerr.New("invalid operator role", goerr.V("operator", op.Name), goerr.V("role", op.Role))
		}
		if _, exists := accounts[op.Name]; exists {
			return nil, goerr.New("duplicate operator name", goerr.V("operator", op.Name))
		}
		accounts[op.Name] = op
	}

	uc := &AuthUseCase{
		repo:       repo,
		operators:  accounts,
		signingKey: signingKey,
		ttl:        DefaultSessionTTL,
		cache:      newAuthCache(),
	}

	for _, opt := range options {
		opt(uc)
	}

	return uc, nil
}

// Login verifies the operator's password, persists a new session, and
// returns the signed JWT referencing it. Unknown names and wrong passwords
// fail the same way.
func (uc *AuthUseCase) Login(ctx context.Context, name, password string) (string, *auth.Token, error) {
	op, ok := uc.operators[name]
	if !ok {
		return "", nil, goerr.Wrap(ErrInvalidCredentials, "unknown operator", goerr.V("operator", name))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", nil, goerr.Wrap(ErrInvalidCredentials, "password mismatch", goerr.V("operator", name))
	}

	token := auth.NewToken(op.Name, op.Role, uc.ttl)
	signed, err := uc.signToken(token)
	if err != nil {
		return "", nil, err
	}
	if err := uc.repo.PutToken(ctx, token); err != nil {
		return "", nil, goerr.Wrap(err, "failed to store token", goerr.V(TokenIDKey, token.ID))
	}

	return signed, token, nil
}

// ValidateToken verifies the JWT signature and claims, then requires the
// referenced session to still exist with a matching secret. Expired
// sessions are deleted lazily here.
func (uc *AuthUseCase) ValidateToken(ctx context.Context, signed string) (*auth.Token, error) {
	parsed, err := jwt.Parse([]byte(signed), jwt.WithKey(jwa.HS256, uc.signingKey), jwt.WithValidate(false))
	if err != nil {
		return nil, goerr.Wrap(ErrTokenInvalid, err.Error())
	}

	tokenID, secret, err := sessionClaims(parsed)
	if err != nil {
		return nil, goerr.Wrap(ErrTokenInvalid, err.Error())
	}

	// Claim validation runs after signature verification so an expired
	// session can still be identified and evicted.
	if err := jwt.Validate(parsed); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			uc.evictExpired(ctx, tokenID)
			return nil, goerr.Wrap(ErrTokenExpired, err.Error(), goerr.V(TokenIDKey, tokenID))
		}
		return nil, goerr.Wrap(ErrTokenInvalid, err.Error())
	}

	return uc.validateSessionWithCache(ctx, tokenID, secret)
}

// Logout revokes the session. Revoking an already revoked session is not
// an error.
func (uc *AuthUseCase) Logout(ctx context.Context, tokenID auth.TokenID) error {
	// Remove from cache first
	uc.cache.remove(tokenID)

	if err := uc.repo.DeleteToken(ctx, tokenID); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return goerr.Wrap(err, "failed to delete token", goerr.V(TokenIDKey, tokenID))
	}
	return nil
}

func (uc *AuthUseCase) signToken(token *auth.Token) (string, error) {
	built, err := jwt.NewBuilder().
		JwtID(token.ID.String()).
		Subject(token.Sub).
		IssuedAt(token.CreatedAt).
		Expiration(token.ExpiresAt).
		Claim(secretClaim, string(token.Secret)).
		Claim("role", token.Role.String()).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build session JWT")
	}

	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS256, uc.signingKey))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign session JWT")
	}
	return string(signed), nil
}

// sessionClaims extracts the session reference from a verified JWT.
func sessionClaims(parsed jwt.Token) (auth.TokenID, auth.TokenSecret, error) {
	tokenID := auth.TokenID(parsed.JwtID())
	if err := tokenID.Validate(); err != nil {
		return "", "", goerr.Wrap(err, "JWT carries no session ID")
	}

	raw, ok := parsed.Get(secretClaim)
	if !ok {
		return "", "", goerr.New("JWT carries no session secret")
	}
	secret, ok := raw.(string)
	if !ok || secret == "" {
		return "", "", goerr.New("session secret claim is malformed")
	}

	return tokenID, auth.TokenSecret(secret), nil
}

func (uc *AuthUseCase) evictExpired(ctx context.Context, tokenID auth.TokenID) {
	uc.cache.remove(tokenID)
	if err := uc.repo.DeleteToken(ctx, tokenID); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		logging.From(ctx).Warn("failed to delete expired token",
			"token_id", tokenID,
			"error", err,
		)
	}
}
