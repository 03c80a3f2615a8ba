package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Auth holds CLI flags for operator authentication. The accounts live in
// the policy file; the signing key is a secret and stays out of it.
type Auth struct {
	signingKey string
	sessionTTL time.Duration
}

// Flags returns CLI flags for authentication configuration
func (x *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "auth-signing-key",
			Usage:       "Secret key for signing session tokens (required when the policy defines operators)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("KAOBAN_AUTH_SIGNING_KEY"),
			Destination: &x.signingKey,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Operator session lifetime",
			Category:    "Authentication",
			Sources:     cli.EnvVars("KAOBAN_SESSION_TTL"),
			Destination: &x.sessionTTL,
		},
	}
}

// LogValue returns the authentication configuration for structured logging (key hidden)
func (x Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("signing-key.len", len(x.signingKey)),
		slog.Duration("session-ttl", x.sessionTTL),
	)
}

// Configure builds the auth use case from the policy operators. No
// operators means authentication is disabled and nil is returned; operators
// without a signing key is a configuration error, never a silent fallback
// to an open server.
func (x *Auth) Configure(repo interfaces.Repository, operators []usecase.Operator) (*usecase.AuthUseCase, error) {
	if len(operators) == 0 {
		if x.signingKey != "" {
			return nil, goerr.New("auth-signing-key is set but the policy defines no operators")
		}
		return nil, nil
	}
	if x.signingKey == "" {
		return nil, goerr.New("auth-signing-key is required when the policy defines operators")
	}

	var options []usecase.AuthOption
	if x.sessionTTL > 0 {
		options = append(options, usecase.WithSessionTTL(x.sessionTTL))
	}
	return usecase.NewAuthUseCase(repo, operators, []byte(x.signingKey), options...)
}
