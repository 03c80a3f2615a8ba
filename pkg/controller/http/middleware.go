package http

import (
	"net/http"
	"strings"

	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
)

// authMiddleware validates the Bearer session for protected requests and
// stores the resolved token in the request context.
func authMiddleware(authUC *usecase.AuthUseCase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signed, ok := bearerToken(r)
			if !ok {
				writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
				return
			}

			token, err := authUC.ValidateToken(r.Context(), signed)
			if err != nil {
				writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired session"})
				return
			}

			ctx := auth.ContextWithToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole rejects sessions whose role does not cover the required one.
// Admins pass every check.
func requireRole(required types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.TokenFromContext(r.Context())
			if !ok {
				writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
				return
			}
			if token.Role != types.RoleAdmin && token.Role != required {
				writeJSON(r.Context(), w, http.StatusForbidden, errorResponse{Error: "insufficient role"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	signed, found := strings.CutPrefix(header, "Bearer ")
	if !found || signed == "" {
		return "", false
	}
	return signed, true
}
