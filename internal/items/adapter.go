// Package items maps todo operations onto a per-user namespace of the
// document store. Every call takes the user id explicitly; the adapter holds
// no identity of its own and performs no caching or retries.
package items

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mytodos/internal/models"
	"mytodos/internal/store"
)

var (
	// ErrStoreUnavailable wraps any failure reaching or using the document store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned when a targeted item does not exist in the namespace.
	ErrNotFound = errors.New("todo not found")
	// ErrNoUser is returned when an operation is attempted without a user id.
	ErrNoUser = errors.New("no user id")
)

// Document field names.
const (
	fieldText      = "text"
	fieldCompleted = "completed"
	fieldTimestamp = "timestamp"
)

// Adapter is the todo view of a document store.
type Adapter struct {
	docs store.DocumentStore
	now  func() time.Time
}

// NewAdapter creates an adapter over docs.
func NewAdapter(docs store.DocumentStore) *Adapter {
	return &Adapter{docs: docs, now: time.Now}
}

// WithClock replaces the clock used to stamp new items.
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	a.now = now
	return a
}

// Namespace returns the collection holding userID's todos.
func Namespace(userID string) string {
	return "users/" + userID + "/todos"
}

func namespace(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.Contains(userID, "/") {
		return "", ErrNoUser
	}
	return Namespace(userID), nil
}

// List returns all of the user's items, newest first. A user with no items
// gets an empty slice.
func (a *Adapter) List(ctx context.Context, userID string) ([]models.Item, error) {
	coll, err := namespace(userID)
	if err != nil {
		return nil, err
	}

	docs, err := a.docs.Query(ctx, coll, store.Order{Field: fieldTimestamp, Descending: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list todos: %w", ErrStoreUnavailable, err)
	}

	items := make([]models.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeItem(doc))
	}
	return items, nil
}

// Create stores a new incomplete item stamped with the current time. Callers
// validate text beforehand.
func (a *Adapter) Create(ctx context.Context, userID, text string) (models.Item, error) {
	coll, err := namespace(userID)
	if err != nil {
		return models.Item{}, err
	}

	createdAt := a.now().UTC().Truncate(time.Millisecond)
	id, err := a.docs.Add(ctx, coll, store.Fields{
		fieldText:      text,
		fieldCompleted: false,
		fieldTimestamp: models.FormatTimestamp(createdAt),
	})
	if err != nil {
		return models.Item{}, fmt.Errorf("%w: failed to add todo: %w", ErrStoreUnavailable, err)
	}

	return models.Item{ID: id, Text: text, Completed: false, CreatedAt: createdAt}, nil
}

// SetCompleted overwrites only the completed field of an item.
func (a *Adapter) SetCompleted(ctx context.Context, userID, itemID string, completed bool) error {
	coll, err := namespace(userID)
	if err != nil {
		return err
	}

	err = a.docs.Update(ctx, coll, itemID, store.Fields{fieldCompleted: completed})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, itemID)
		}
		return fmt.Errorf("%w: failed to update todo: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Remove deletes an item. Removing an item that is already gone succeeds.
func (a *Adapter) Remove(ctx context.Context, userID, itemID string) error {
	coll, err := namespace(userID)
	if err != nil {
		return err
	}

	err = a.docs.Delete(ctx, coll, itemID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: failed to delete todo: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// decodeItem reads an item from a document, tolerating missing or mistyped
// fields written by other clients.
func decodeItem(doc store.Document) models.Item {
	item := models.Item{ID: doc.ID}
	if text, ok := doc.Fields[fieldText].(string); ok {
		item.Text = text
	}
	if completed, ok := doc.Fields[fieldCompleted].(bool); ok {
		item.Completed = completed
	}
	if stamp, ok := doc.Fields[fieldTimestamp].(string); ok {
		if t, err := models.ParseTimestamp(stamp); err == nil {
			item.CreatedAt = t
		}
	}
	return item
}
