// Package session holds the per-session todo state: the signed-in user's
// items, the active filter, one user-facing error slot and the input buffer.
//
// Every successful mutation is followed by a full re-read of the user's
// items, which replaces local state wholesale. Operations are sequence
// numbered when issued; an outcome is applied only if no newer operation has
// been issued since, so a slow stale response can never overwrite a newer one.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mytodos/internal/items"
	"mytodos/internal/models"
)

// User-facing messages placed in the error slot.
const (
	MsgFetchFailed      = "Failed to fetch todos"
	MsgAddFailed        = "Failed to add todo"
	MsgUpdateFailed     = "Failed to update todo"
	MsgDeleteFailed     = "Failed to delete todo"
	MsgLogoutFailed     = "Failed to log out"
	MsgPasswordMismatch = "Passwords do not match"
	msgLoginPrefix      = "Failed to sign in: "
	msgSignupPrefix     = "Failed to create an account: "
)

var (
	// ErrNotSignedIn is returned by item operations when no user is signed in.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrPasswordMismatch is returned by Signup when the confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Identity is the identity provider a session signs in through.
type Identity interface {
	CurrentUserID() (string, bool)
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
}

// ItemStore is the per-user item persistence a session drives.
type ItemStore interface {
	List(ctx context.Context, userID string) ([]models.Item, error)
	Create(ctx context.Context, userID, text string) (models.Item, error)
	SetCompleted(ctx context.Context, userID, itemID string, completed bool) error
	Remove(ctx context.Context, userID, itemID string) error
}

// Controller owns the state of one signed-in session. It is safe for
// concurrent use; network calls are made without holding its lock.
type Controller struct {
	identity Identity
	store    ItemStore

	mu       sync.Mutex
	items    []models.Item
	filter   models.FilterMode
	errMsg   ErrorMessage
	input    string
	issued   uint64
	inflight int
}

// NewController creates a controller with empty state. Call Load to fetch
// the signed-in user's items.
func NewController(identity Identity, store ItemStore) *Controller {
	return &Controller{
		identity: identity,
		store:    store,
		items:    []models.Item{},
	}
}

// begin issues a new operation and returns its sequence number.
func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	c.inflight++
	return c.issued
}

func (c *Controller) end() {
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
}

// latestLocked reports whether seq is still the newest issued operation.
func (c *Controller) latestLocked(seq uint64) bool {
	return seq == c.issued
}

// fail records msg in the error slot unless a newer operation superseded seq.
func (c *Controller) fail(seq uint64, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latestLocked(seq) {
		c.errMsg = SomeError(msg)
	}
}

// refresh re-reads the user's items and replaces local state with them.
func (c *Controller) refresh(ctx context.Context, seq uint64, userID string) error {
	list, err := c.store.List(ctx, userID)
	if err != nil {
		c.fail(seq, MsgFetchFailed)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latestLocked(seq) {
		c.items = list
		c.errMsg = ErrorMessage{}
	}
	return nil
}

// userID returns the signed-in user, or records msg and ErrNotSignedIn.
func (c *Controller) userID(seq uint64, msg string) (string, error) {
	uid, ok := c.identity.CurrentUserID()
	if !ok || uid == "" {
		c.fail(seq, msg)
		return "", ErrNotSignedIn
	}
	return uid, nil
}

// Load fetches the signed-in user's items, as done when a session starts.
func (c *Controller) Load(ctx context.Context) error {
	seq := c.begin()
	defer c.end()

	uid, err := c.userID(seq, MsgFetchFailed)
	if err != nil {
		return err
	}
	return c.refresh(ctx, seq, uid)
}

// AddItem creates an item and re-reads the list. Blank text is ignored
// without a network call or error. On success the input buffer is cleared.
func (c *Controller) AddItem(ctx context.Context, text string) error {
	if models.ValidateText(text) != nil {
		return nil
	}

	seq := c.begin()
	defer c.end()

	uid, err := c.userID(seq, MsgAddFailed)
	if err != nil {
		return err
	}

	if _, err := c.store.Create(ctx, uid, text); err != nil {
		c.fail(seq, MsgAddFailed)
		return err
	}

	c.mu.Lock()
	c.input = ""
	c.mu.Unlock()

	return c.refresh(ctx, seq, uid)
}

// Submit adds the contents of the input buffer.
func (c *Controller) Submit(ctx context.Context) error {
	return c.AddItem(ctx, c.Input())
}

// ToggleItem flips an item's completed flag. The current value is taken from
// local state, not re-read from the store, so a concurrent change made
// elsewhere can be toggled from a stale value.
func (c *Controller) ToggleItem(ctx context.Context, id string) error {
	seq := c.begin()
	defer c.end()

	uid, err := c.userID(seq, MsgUpdateFailed)
	if err != nil {
		return err
	}

	completed, ok := c.completed(id)
	if !ok {
		c.fail(seq, MsgUpdateFailed)
		return fmt.Errorf("%w: %s", items.ErrNotFound, id)
	}

	if err := c.store.SetCompleted(ctx, uid, id, !completed); err != nil {
		c.fail(seq, MsgUpdateFailed)
		return err
	}

	return c.refresh(ctx, seq, uid)
}

func (c *Controller) completed(id string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if item.ID == id {
			return item.Completed, true
		}
	}
	return false, false
}

// DeleteItem removes an item and re-reads the list. Deleting an item that is
// already gone succeeds.
func (c *Controller) DeleteItem(ctx context.Context, id string) error {
	seq := c.begin()
	defer c.end()

	uid, err := c.userID(seq, MsgDeleteFailed)
	if err != nil {
		return err
	}

	if err := c.store.Remove(ctx, uid, id); err != nil {
		c.fail(seq, MsgDeleteFailed)
		return err
	}

	return c.refresh(ctx, seq, uid)
}

// SetFilter changes which items VisibleItems returns.
func (c *Controller) SetFilter(mode models.FilterMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = mode
}

// Login signs in and loads the user's items. Failures are reported with the
// provider's message.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	seq := c.begin()
	defer c.end()

	if err := c.identity.Login(ctx, email, password); err != nil {
		c.fail(seq, msgLoginPrefix+err.Error())
		return err
	}
	return c.start(ctx, seq)
}

// Signup creates an account, signs in and loads its (empty) item list.
func (c *Controller) Signup(ctx context.Context, email, password, confirm string) error {
	if password != confirm {
		seq := c.begin()
		c.fail(seq, MsgPasswordMismatch)
		c.end()
		return ErrPasswordMismatch
	}

	seq := c.begin()
	defer c.end()

	if err := c.identity.Signup(ctx, email, password); err != nil {
		c.fail(seq, msgSignupPrefix+err.Error())
		return err
	}
	return c.start(ctx, seq)
}

// start discards the previous session's state and loads the new user's items.
func (c *Controller) start(ctx context.Context, seq uint64) error {
	c.mu.Lock()
	if c.latestLocked(seq) {
		c.resetLocked()
	}
	c.mu.Unlock()

	uid, err := c.userID(seq, MsgFetchFailed)
	if err != nil {
		return err
	}
	return c.refresh(ctx, seq, uid)
}

// Logout signs out and discards session state.
func (c *Controller) Logout(ctx context.Context) error {
	seq := c.begin()
	defer c.end()

	if err := c.identity.Logout(ctx); err != nil {
		c.fail(seq, MsgLogoutFailed)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latestLocked(seq) {
		c.resetLocked()
	}
	return nil
}

func (c *Controller) resetLocked() {
	c.items = []models.Item{}
	c.filter = models.FilterAll
	c.errMsg = ErrorMessage{}
	c.input = ""
}

// SetInput replaces the input buffer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Input returns the input buffer.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Items returns a copy of all items, newest first.
func (c *Controller) Items() []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Item(nil), c.items...)
}

// VisibleItems returns the items matching the current filter. It is
// recomputed on every call.
func (c *Controller) VisibleItems() []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.Filter(c.items, c.filter)
}

// Filter returns the current filter mode.
func (c *Controller) Filter() models.FilterMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Error returns the error slot.
func (c *Controller) Error() ErrorMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Pending reports whether any operation is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// Snapshot is a consistent, immutable copy of the session state.
type Snapshot struct {
	Items   []models.Item
	Visible []models.Item
	Filter  models.FilterMode
	Error   ErrorMessage
	Pending bool
	Input   string
}

// Snapshot returns the current state in one consistent read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Items:   append([]models.Item(nil), c.items...),
		Visible: models.Filter(c.items, c.filter),
		Filter:  c.filter,
		Error:   c.errMsg,
		Pending: c.inflight > 0,
		Input:   c.input,
	}
}

// ErrorMessage is an optional user-facing message. The zero value holds no
// message, which is distinct from holding an empty one.
type ErrorMessage struct {
	text  string
	valid bool
}

// SomeError returns an ErrorMessage holding text.
func SomeError(text string) ErrorMessage {
	return ErrorMessage{text: text, valid: true}
}

// Get returns the message and whether one is set.
func (e ErrorMessage) Get() (string, bool) {
	return e.text, e.valid
}

// IsSet reports whether a message is present.
func (e ErrorMessage) IsSet() bool {
	return e.valid
}

func (e ErrorMessage) String() string {
	if !e.valid {
		return "<none>"
	}
	return strings.TrimSpace(e.text)
}
