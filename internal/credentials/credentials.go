// Package credentials persists the signed-in session between CLI runs.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"mytodos/internal/models"
)

// ErrNone is returned by Load when no credentials are saved.
var ErrNone = errors.New("no saved credentials")

const lockTimeout = 3 * time.Second

// Credentials is a saved session.
type Credentials struct {
	BaseURL string      `yaml:"base_url"`
	Token   string      `yaml:"token"`
	User    models.User `yaml:"user"`
}

// File is a credentials file guarded by a sibling lock file, so concurrent
// CLI invocations never observe a half-written session.
type File struct {
	path string
	lock *flock.Flock
}

// NewFile returns the credentials file at path.
func NewFile(path string) *File {
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

func (f *File) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}
	locked, err := f.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire lock on %s", f.path)
	}
	return func() { _ = f.lock.Unlock() }, nil
}

// Load reads the saved session. It returns ErrNone if the file is missing,
// empty or holds no token.
func (f *File) Load(ctx context.Context) (Credentials, error) {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return Credentials{}, err
	}
	defer unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNone
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if creds.Token == "" || creds.User.ID == "" {
		return Credentials{}, ErrNone
	}
	return creds, nil
}

// Save replaces the saved session. The file is written to a temporary path
// and renamed into place, readable only by the owner.
func (f *File) Save(ctx context.Context, creds Credentials) error {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}

// Clear removes the saved session. Clearing when nothing is saved succeeds.
func (f *File) Clear(ctx context.Context) error {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// DefaultPath returns the credentials location under the user's config
// directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "mytodos", "credentials.yaml")
}
