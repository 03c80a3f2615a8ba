package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
)

const (
	authCacheTTL = 5 * time.Minute
)

type cachedToken struct {
	token     *auth.Token
	expiresAt time.Time
}

// authCache keeps validated sessions out of the repository hot path. A
// revocation performed outside Logout becomes visible after at most
// authCacheTTL.
type authCache struct {
	cache sync.Map
}

func newAuthCache() *authCache {
	return &authCache{}
}

func (c *authCache) get(tokenID auth.TokenID) (*auth.Token, bool) {
	val, ok := c.cache.Load(tokenID)
	if !ok {
		return nil, false
	}

	cached := val.(*cachedToken)
	if time.Now().After(cached.expiresAt) {
		c.cache.Delete(tokenID)
		return nil, false
	}

	return cached.token, true
}

func (c *authCache) set(token *auth.Token) {
	cached := &cachedToken{
		token:     token,
		expiresAt: time.Now().Add(authCacheTTL),
	}
	c.cache.Store(token.ID, cached)
}

func (c *authCache) remove(tokenID auth.TokenID) {
	c.cache.Delete(tokenID)
}

// validateSessionWithCache resolves the session behind a verified JWT.
func (uc *AuthUseCase) validateSessionWithCache(ctx context.Context, tokenID auth.TokenID, secret auth.TokenSecret) (*auth.Token, error) {
	// Check cache first
	if token, ok := uc.cache.get(tokenID); ok {
		if token.Secret != secret {
			return nil, goerr.Wrap(ErrTokenInvalid, "session secret mismatch", goerr.V(TokenIDKey, tokenID))
		}
		if token.Expired(time.Now()) {
			uc.cache.remove(tokenID)
			return nil, goerr.Wrap(ErrTokenExpired, "session expired", goerr.V(TokenIDKey, tokenID))
		}
		return token, nil
	}

	// Cache miss, get from repository
	token, err := uc.repo.GetToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrTokenInvalid, "session revoked or unknown", goerr.V(TokenIDKey, tokenID))
		}
		return nil, goerr.Wrap(err, "failed to get token from repository", goerr.V(TokenIDKey, tokenID))
	}

	if token.Secret != secret {
		return nil, goerr.Wrap(ErrTokenInvalid, "session secret mismatch", goerr.V(TokenIDKey, tokenID))
	}
	if token.Expired(time.Now()) {
		if err := uc.repo.DeleteToken(ctx, tokenID); err != nil {
			return nil, goerr.Wrap(err, "failed to delete expired token", goerr.V(TokenIDKey, tokenID))
		}
		return nil, goerr.Wrap(ErrTokenExpired, "session expired", goerr.V(TokenIDKey, tokenID))
	}

	// Cache the token
	uc.cache.set(token)

	return token, nil
}
