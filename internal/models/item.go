package models

import (
	"errors"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for the persisted timestamp field.
// It is fixed width in UTC so that lexical order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Item represents a single todo owned by one user.
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateText checks that todo text is usable before it is submitted.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text is required")
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a persisted timestamp. RFC 3339 values written by
// other clients are accepted as well.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
