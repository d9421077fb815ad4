package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mytodos/internal/models"
)

var (
	// ErrNotFound is returned when a targeted document, user or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath is returned for malformed collection paths.
	ErrInvalidPath = errors.New("invalid collection path")
	// ErrInvalidField is returned for order fields that are not plain identifiers.
	ErrInvalidField = errors.New("invalid field name")
	// ErrEmailTaken is returned when signing up with an email already in use.
	ErrEmailTaken = errors.New("email already in use")
)

// Fields holds the data of a document keyed by field name.
type Fields map[string]any

// Document is a single record in a collection.
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Order controls the ordering of a collection query.
type Order struct {
	Field      string
	Descending bool
}

// DocumentStore defines the document operations the todo adapter relies on.
// Collections are slash separated paths such as "users/{uid}/todos".
type DocumentStore interface {
	Query(ctx context.Context, collection string, order Order) ([]Document, error)
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

// UserStore defines persistence for accounts and their sign-in sessions.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User, passwordHash []byte) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, []byte, error)
	CreateSession(ctx context.Context, token, userID string) error
	GetSessionUser(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// Store is the complete persistence surface served by the API.
type Store interface {
	DocumentStore
	UserStore

	// Lifecycle
	Close() error
}

// ValidateCollection checks that a collection path has an odd number of
// non-empty segments, e.g. "todos" or "users/abc/todos".
func ValidateCollection(collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(collection, "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q does not name a collection", ErrInvalidPath, collection)
	}
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, collection)
		}
	}
	return nil
}
