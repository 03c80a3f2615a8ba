package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/errutil"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
)

// Server is the REST front of the attendance engine. Authentication is
// optional: without it every route is open, with it all routes except
// login and health require a Bearer session and mutations require the
// admin role.
type Server struct {
	router  *chi.Mux
	addr    string
	uc      *usecase.UseCases
	authUC  *usecase.AuthUseCase
	encoder interfaces.Encoder
}

type Options func(*Server)

// WithAddr sets the listen address reported by Addr. Default ":8080".
func WithAddr(addr string) Options {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithAuth enables Bearer session authentication on the API routes.
func WithAuth(authUC *usecase.AuthUseCase) Options {
	return func(s *Server) {
		s.authUC = authUC
	}
}

// WithEncoder enables the image-accepting detection route, forwarding
// captured frames to the external encoder service.
func WithEncoder(encoder interfaces.Encoder) Options {
	return func(s *Server) {
		s.encoder = encoder
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	if uc == nil {
		return nil, goerr.New("use cases are required")
	}

	r := chi.NewRouter()
	s := &Server{
		router: r,
		addr:   ":8080",
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Login is the one route that must work without a session.
		if s.authUC != nil {
			r.Post("/auth/login", authLoginHandler(s.authUC))
		}

		r.Group(func(r chi.Router) {
			if s.authUC != nil {
				r.Use(authMiddleware(s.authUC))
				r.Post("/auth/logout", authLogoutHandler(s.authUC))
			}

			r.Post("/detections", detectionHandler(s.uc))
			r.Post("/detections/image", detectionImageHandler(s.uc, s.encoder))

			r.Route("/people", func(r chi.Router) {
				r.Get("/", listPeopleHandler(s.uc))
				r.Get("/{id}", getPersonHandler(s.uc))

				r.Group(func(r chi.Router) {
					if s.authUC != nil {
						r.Use(requireRole(types.RoleAdmin))
					}
					r.Post("/", createPersonHandler(s.uc))
					r.Delete("/{id}", deletePersonHandler(s.uc))
					r.Post("/{id}/faces", enrollFaceHandler(s.uc))
				})
			})

			r.Route("/attendance", func(r chi.Router) {
				r.Get("/", dailyReportHandler(s.uc))
				r.Get("/active", activeReportHandler(s.uc))
				r.Get("/range", rangeReportHandler(s.uc))
			})
		})
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// Handlers below log through the request-scoped logger so every
		// line carries the request ID.
		logger := logging.From(r.Context()).With(
			"request_id", middleware.GetReqID(r.Context()),
		)
		ctx := logging.With(r.Context(), logger)

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		errutil.Handle(ctx, err, "failed to encode JSON response")
	}
}

// decodeJSON parses the request body into dst. A false return means the
// 400 response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode request body"), http.StatusBadRequest)
		return false
	}
	return true
}
