package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/errutil"
)

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Sub       string    `json:"sub"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// authLoginHandler exchanges operator credentials for a Bearer session.
func authLoginHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		signed, token, err := authUC.Login(r.Context(), req.Name, req.Password)
		if err != nil {
			if errors.Is(err, usecase.ErrInvalidCredentials) {
				writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
				return
			}
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, loginResponse{
			Token:     signed,
			Sub:       token.Sub,
			Role:      token.Role.String(),
			ExpiresAt: token.ExpiresAt,
		})
	}
}

// authLogoutHandler revokes the session carried by the request.
func authLogoutHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromContext(r.Context())
		if !ok {
			writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		if err := authUC.Logout(r.Context(), token.ID); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
	}
}
