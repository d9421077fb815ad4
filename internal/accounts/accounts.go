// Package accounts is the identity provider: it signs users up and in,
// issues bearer tokens, and resolves tokens back to users.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mytodos/internal/models"
	"mytodos/internal/store"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned by Authenticate for a missing or unknown token.
	ErrUnauthenticated = errors.New("not signed in")
)

// Session is the result of a successful signup or login.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Service implements signup, login, logout and token authentication.
type Service struct {
	users store.UserStore
	cost  int
}

// New creates a Service backed by the given user store.
func New(users store.UserStore) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

// WithCost returns a copy of the service that hashes with the given bcrypt
// cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	cp := *s
	cp.cost = cost
	return &cp
}

// Signup creates an account and signs it in.
func (s *Service) Signup(ctx context.Context, email, password string) (*Session, error) {
	if err := models.ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Email: models.NormalizeEmail(email)}
	if err := s.users.CreateUser(ctx, user, hash); err != nil {
		return nil, err
	}

	return s.startSession(ctx, user)
}

// Login verifies credentials and issues a new token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, hash, err := s.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

// Logout revokes a token. Revoking an unknown token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.users.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetSessionUser(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) startSession(ctx context.Context, user *models.User) (*Session, error) {
	token := uuid.New().String()
	if err := s.users.CreateSession(ctx, token, user.ID); err != nil {
		return nil, err
	}
	return &Session{Token: token, User: *user}, nil
}
