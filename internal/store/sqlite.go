package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"mytodos/internal/models"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite store with the given database path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Query returns every document in a collection, ordered by the given field.
// Documents missing the field sort as null. Ties are broken by id.
func (s *SQLiteStore) Query(ctx context.Context, collection string, order Order) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	direction := "ASC"
	if order.Descending {
		direction = "DESC"
	}

	query := `SELECT id, data FROM documents WHERE collection = ?`
	args := []any{collection}
	if order.Field != "" {
		if !fieldNamePattern.MatchString(order.Field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, order.Field)
		}
		query += fmt.Sprintf(` ORDER BY json_extract(data, ?) %s, id %s`, direction, direction)
		args = append(args, "$."+order.Field)
	} else {
		query += fmt.Sprintf(` ORDER BY id %s`, direction)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			doc  Document
			data string
		)
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Add inserts a new document and returns its generated id.
func (s *SQLiteStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if fields == nil {
		fields = Fields{}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.New().String()
	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, collection, id, string(data), now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	return id, nil
}

// Update merges fields into an existing document. Fields not named are left
// untouched.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document patch: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = json_patch(data, ?), updated_at = ?
		WHERE collection = ? AND id = ?
	`, string(patch), s.now(), collection, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, ErrNotFound)
	}

	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// CreateUser stores a new account. The email must already be normalized.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User, passwordHash []byte) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.Email, passwordHash, user.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user and their password hash.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, []byte, error) {
	user := &models.User{}
	var hash []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = ?
	`, email).Scan(&user.ID, &user.Email, &hash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, hash, nil
}

// CreateSession records a sign-in token for a user.
func (s *SQLiteStore) CreateSession(ctx context.Context, token, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)
	`, token, userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a sign-in token to its user.
func (s *SQLiteStore) GetSessionUser(ctx context.Context, token string) (*models.User, error) {
	user := &models.User{}

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.created_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?
	`, token).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return user, nil
}

// DeleteSession removes a sign-in token. Unknown tokens are ignored.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
