package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mytodos/internal/accounts"
	"mytodos/internal/models"
	"mytodos/internal/store"
)

const maxBodyBytes = 1 << 20

// Authenticator is the identity provider the API serves.
type Authenticator interface {
	Signup(ctx context.Context, email, password string) (*accounts.Session, error)
	Login(ctx context.Context, email, password string) (*accounts.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	docs    store.DocumentStore
	auth    Authenticator
	limiter *clientLimiter
}

// New creates a new Handlers instance.
func New(docs store.DocumentStore, auth Authenticator) *Handlers {
	return &Handlers{
		docs:    docs,
		auth:    auth,
		limiter: newClientLimiter(authRate, authBurst),
	}
}

// Routes builds the API router.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		// Identity routes
		r.With(h.limiter.middleware).Post("/accounts", h.Signup)
		r.With(h.limiter.middleware).Post("/sessions", h.Login)
		r.Get("/sessions/current", h.CurrentSession)
		r.Delete("/sessions/current", h.Logout)

		// Document routes, scoped to the signed-in user
		r.Route("/users/{uid}/{collection}", func(r chi.Router) {
			r.Use(h.requireOwner)
			r.Get("/", h.QueryDocuments)
			r.Post("/", h.AddDocument)
			r.Patch("/{docID}", h.UpdateDocument)
			r.Delete("/{docID}", h.DeleteDocument)
		})
	})

	return r
}

// requireOwner rejects requests whose bearer token does not belong to the
// user named in the path.
func (h *Handlers) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			if errors.Is(err, accounts.ErrUnauthenticated) {
				respondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			respondServerError(w, err)
			return
		}

		if chi.URLParam(r, "uid") != user.ID {
			respondError(w, http.StatusForbidden, "permission denied")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(message))
}

func respondServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "err", err)
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
