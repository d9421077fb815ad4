package handlers

import (
	"errors"
	"net/http"

	"mytodos/internal/accounts"
	"mytodos/internal/models"
	"mytodos/internal/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an account and returns a signed-in session.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := models.ValidateCredentials(req.Email, req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.auth.Signup(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			respondError(w, http.StatusConflict, "the email address is already in use by another account")
			return
		}
		respondServerError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, sess)
}

// Login signs an existing user in.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sess, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		respondServerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

// CurrentSession returns the user behind the bearer token.
func (h *Handlers) CurrentSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		if errors.Is(err, accounts.ErrUnauthenticated) {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		respondServerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Logout revokes the bearer token.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, accounts.ErrUnauthenticated.Error())
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		respondServerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
