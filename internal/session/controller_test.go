package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mytodos/internal/items"
	"mytodos/internal/models"
)

var errUnavailable = fmt.Errorf("%w: connection refused", items.ErrStoreUnavailable)

// fakeIdentity is an in-memory identity provider.
type fakeIdentity struct {
	mu        sync.Mutex
	userID    string
	loginErr  error
	signupErr error
	logoutErr error
	calls     int
}

func (f *fakeIdentity) CurrentUserID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID, f.userID != ""
}

func (f *fakeIdentity) Login(_ context.Context, email, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.loginErr != nil {
		return f.loginErr
	}
	f.userID = "uid-" + email
	return nil
}

func (f *fakeIdentity) Signup(_ context.Context, email, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.signupErr != nil {
		return f.signupErr
	}
	f.userID = "uid-" + email
	return nil
}

func (f *fakeIdentity) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.logoutErr != nil {
		return f.logoutErr
	}
	f.userID = ""
	return nil
}

// fakeStore keeps items per user, newest first, and can fail or stall calls.
type fakeStore struct {
	mu        sync.Mutex
	items     map[string][]models.Item
	nextID    int
	clock     time.Time
	createErr error
	listErr   error
	setErr    error
	removeErr error
	calls     int

	// listGates holds a gate per List call number; a gated call snapshots
	// its result, signals listEntered and waits for the gate to close.
	listGates   map[int]chan struct{}
	listEntered chan int
	listCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items: map[string][]models.Item{},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) List(_ context.Context, userID string) ([]models.Item, error) {
	f.mu.Lock()
	f.calls++
	f.listCalls++
	n := f.listCalls
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	out := append([]models.Item{}, f.items[userID]...)
	gate := f.listGates[n]
	entered := f.listEntered
	f.mu.Unlock()

	if gate != nil {
		entered <- n
		<-gate
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, userID, text string) (models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return models.Item{}, f.createErr
	}
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	item := models.Item{ID: fmt.Sprintf("t%d", f.nextID), Text: text, CreatedAt: f.clock}
	f.items[userID] = append([]models.Item{item}, f.items[userID]...)
	return item, nil
}

func (f *fakeStore) SetCompleted(_ context.Context, userID, itemID string, completed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.setErr != nil {
		return f.setErr
	}
	for i := range f.items[userID] {
		if f.items[userID][i].ID == itemID {
			f.items[userID][i].Completed = completed
			return nil
		}
	}
	return items.ErrNotFound
}

func (f *fakeStore) Remove(_ context.Context, userID, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.removeErr != nil {
		return f.removeErr
	}
	kept := f.items[userID][:0]
	for _, item := range f.items[userID] {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	f.items[userID] = kept
	return nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func setupTestController(t *testing.T) (*Controller, *fakeStore, *fakeIdentity) {
	t.Helper()
	store := newFakeStore()
	identity := &fakeIdentity{userID: "u1"}
	return NewController(identity, store), store, identity
}

func itemTexts(list []models.Item) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, item.Text)
	}
	return out
}

func assertError(t *testing.T, c *Controller, want string) {
	t.Helper()
	got, ok := c.Error().Get()
	if !ok {
		t.Fatalf("expected error %q, got none", want)
	}
	if got != want {
		t.Errorf("expected error %q, got %q", want, got)
	}
}

func assertNoError(t *testing.T, c *Controller) {
	t.Helper()
	if msg, ok := c.Error().Get(); ok {
		t.Errorf("expected no error, got %q", msg)
	}
}

func TestLoad(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()
	store.Create(ctx, "u1", "old")
	store.Create(ctx, "u1", "new")

	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"new", "old"}, itemTexts(c.Items())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	assertNoError(t, c)
}

func TestLoad_Failure(t *testing.T) {
	c, store, _ := setupTestController(t)
	store.listErr = errUnavailable

	if err := c.Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail")
	}
	if len(c.Items()) != 0 {
		t.Errorf("expected no items, got %d", len(c.Items()))
	}
	assertError(t, c, MsgFetchFailed)
}

func TestAddItem(t *testing.T) {
	c, _, _ := setupTestController(t)
	ctx := context.Background()

	c.SetInput("buy milk")
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got := c.Items()
	if len(got) != 1 || got[0].Text != "buy milk" || got[0].Completed {
		t.Fatalf("unexpected items: %+v", got)
	}
	if c.Input() != "" {
		t.Errorf("expected input to be cleared, got %q", c.Input())
	}
	assertNoError(t, c)
}

func TestAddItem_BlankIsNoop(t *testing.T) {
	c, store, _ := setupTestController(t)

	for _, text := range []string{"", "   ", "\t\n"} {
		if err := c.AddItem(context.Background(), text); err != nil {
			t.Errorf("AddItem(%q) returned %v", text, err)
		}
	}
	if store.callCount() != 0 {
		t.Errorf("expected no store calls, got %d", store.callCount())
	}
	if c.Error().IsSet() {
		t.Error("expected no error for blank input")
	}
}

func TestAddItem_FailurePreservesState(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	c.AddItem(ctx, "B")
	before := c.Items()

	store.createErr = errUnavailable
	c.SetInput("C")
	if err := c.Submit(ctx); !errors.Is(err, items.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	if diff := cmp.Diff(before, c.Items()); diff != "" {
		t.Errorf("items changed after failure (-want +got):\n%s", diff)
	}
	if c.Input() != "C" {
		t.Errorf("expected input to be kept, got %q", c.Input())
	}
	assertError(t, c, MsgAddFailed)
}

func TestAddItem_RefreshFailure(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()

	store.listErr = errUnavailable
	c.AddItem(ctx, "A")

	assertError(t, c, MsgFetchFailed)
	if len(c.Items()) != 0 {
		t.Errorf("expected local items untouched, got %d", len(c.Items()))
	}

	store.listErr = nil
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, itemTexts(c.Items())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	assertNoError(t, c)
}

func TestToggleItem(t *testing.T) {
	c, _, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	id := c.Items()[0].ID

	if err := c.ToggleItem(ctx, id); err != nil {
		t.Fatalf("ToggleItem failed: %v", err)
	}
	if !c.Items()[0].Completed {
		t.Error("expected item to be completed after one toggle")
	}

	if err := c.ToggleItem(ctx, id); err != nil {
		t.Fatalf("second ToggleItem failed: %v", err)
	}
	if c.Items()[0].Completed {
		t.Error("expected item to be incomplete after two toggles")
	}
	assertNoError(t, c)
}

func TestToggleItem_UsesLocalValue(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	id := c.Items()[0].ID

	// Another writer completes the item; local state still says active.
	store.SetCompleted(ctx, "u1", id, true)

	if err := c.ToggleItem(ctx, id); err != nil {
		t.Fatalf("ToggleItem failed: %v", err)
	}
	if !c.Items()[0].Completed {
		t.Error("expected toggle from stale local value to write completed=true")
	}
}

func TestToggleItem_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setErr error
		id     func(c *Controller) string
	}{
		{
			name:   "store unavailable",
			setErr: errUnavailable,
			id:     func(c *Controller) string { return c.Items()[0].ID },
		},
		{
			name:   "removed elsewhere",
			setErr: fmt.Errorf("%w: t1", items.ErrNotFound),
			id:     func(c *Controller) string { return c.Items()[0].ID },
		},
		{
			name: "unknown locally",
			id:   func(*Controller) string { return "missing" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, _ := setupTestController(t)
			ctx := context.Background()
			c.AddItem(ctx, "A")
			before := c.Items()

			store.setErr = tt.setErr
			if err := c.ToggleItem(ctx, tt.id(c)); err == nil {
				t.Fatal("expected ToggleItem to fail")
			}

			if diff := cmp.Diff(before, c.Items()); diff != "" {
				t.Errorf("items changed after failure (-want +got):\n%s", diff)
			}
			assertError(t, c, MsgUpdateFailed)
		})
	}
}

func TestDeleteItem(t *testing.T) {
	c, _, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	c.AddItem(ctx, "B")
	id := c.Items()[1].ID

	if err := c.DeleteItem(ctx, id); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if diff := cmp.Diff([]string{"B"}, itemTexts(c.Items())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	if err := c.DeleteItem(ctx, id); err != nil {
		t.Errorf("expected repeated delete to succeed, got %v", err)
	}
	assertNoError(t, c)
}

func TestDeleteItem_Failure(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	before := c.Items()

	store.removeErr = errUnavailable
	c.DeleteItem(ctx, before[0].ID)

	if diff := cmp.Diff(before, c.Items()); diff != "" {
		t.Errorf("items changed after failure (-want +got):\n%s", diff)
	}
	assertError(t, c, MsgDeleteFailed)
}

func TestErrorClearedBySuccess(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()

	store.createErr = errUnavailable
	c.AddItem(ctx, "A")
	assertError(t, c, MsgAddFailed)

	store.createErr = nil
	c.AddItem(ctx, "A")
	assertNoError(t, c)
}

func TestNewerFailureReplacesMessage(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")

	store.createErr = errUnavailable
	c.AddItem(ctx, "B")
	store.removeErr = errUnavailable
	c.DeleteItem(ctx, c.Items()[0].ID)

	assertError(t, c, MsgDeleteFailed)
}

func TestFilter(t *testing.T) {
	c, _, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	c.AddItem(ctx, "B")
	c.AddItem(ctx, "C")
	c.ToggleItem(ctx, c.Items()[1].ID) // B

	tests := []struct {
		mode models.FilterMode
		want []string
	}{
		{mode: models.FilterAll, want: []string{"C", "B", "A"}},
		{mode: models.FilterActive, want: []string{"C", "A"}},
		{mode: models.FilterCompleted, want: []string{"B"}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			c.SetFilter(tt.mode)
			if c.Filter() != tt.mode {
				t.Errorf("expected filter %v, got %v", tt.mode, c.Filter())
			}
			if diff := cmp.Diff(tt.want, itemTexts(c.VisibleItems())); diff != "" {
				t.Errorf("visible items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_DoesNotChangeItems(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	before := c.Items()
	calls := store.callCount()

	c.SetFilter(models.FilterCompleted)
	if len(c.VisibleItems()) != 0 {
		t.Errorf("expected no completed items, got %d", len(c.VisibleItems()))
	}
	if diff := cmp.Diff(before, c.Items()); diff != "" {
		t.Errorf("items changed by filter (-want +got):\n%s", diff)
	}
	if store.callCount() != calls {
		t.Error("expected SetFilter to make no store calls")
	}
}

func TestScenario_AddToggleFilterDelete(t *testing.T) {
	c, _, _ := setupTestController(t)
	ctx := context.Background()

	c.AddItem(ctx, "buy milk")
	c.AddItem(ctx, "walk dog")
	if diff := cmp.Diff([]string{"walk dog", "buy milk"}, itemTexts(c.Items())); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	milk := c.Items()[1].ID
	c.ToggleItem(ctx, milk)

	c.SetFilter(models.FilterActive)
	if diff := cmp.Diff([]string{"walk dog"}, itemTexts(c.VisibleItems())); diff != "" {
		t.Errorf("active mismatch (-want +got):\n%s", diff)
	}
	c.SetFilter(models.FilterCompleted)
	if diff := cmp.Diff([]string{"buy milk"}, itemTexts(c.VisibleItems())); diff != "" {
		t.Errorf("completed mismatch (-want +got):\n%s", diff)
	}

	c.DeleteItem(ctx, milk)
	if len(c.VisibleItems()) != 0 {
		t.Errorf("expected no completed items after delete, got %d", len(c.VisibleItems()))
	}
	c.SetFilter(models.FilterAll)
	if diff := cmp.Diff([]string{"walk dog"}, itemTexts(c.VisibleItems())); diff != "" {
		t.Errorf("all mismatch (-want +got):\n%s", diff)
	}
	assertNoError(t, c)
}

func TestStaleRefreshDiscarded(t *testing.T) {
	c, store, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A") // list call 1
	id := c.Items()[0].ID

	gate := make(chan struct{})
	store.mu.Lock()
	store.listGates = map[int]chan struct{}{2: gate}
	store.listEntered = make(chan int, 1)
	store.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.ToggleItem(ctx, id) }()

	// The toggle's refresh has read [A completed] and is stalled.
	<-store.listEntered
	if !c.Pending() {
		t.Error("expected pending while toggle is in flight")
	}

	if err := c.DeleteItem(ctx, id); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if len(c.Items()) != 0 {
		t.Fatalf("expected delete to empty the list, got %d", len(c.Items()))
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("ToggleItem failed: %v", err)
	}

	if len(c.Items()) != 0 {
		t.Errorf("stale refresh overwrote newer state: %+v", c.Items())
	}
	if c.Pending() {
		t.Error("expected nothing pending")
	}
}

func TestNotSignedIn(t *testing.T) {
	tests := []struct {
		name string
		op   func(c *Controller) error
		want string
	}{
		{name: "load", op: func(c *Controller) error { return c.Load(context.Background()) }, want: MsgFetchFailed},
		{name: "add", op: func(c *Controller) error { return c.AddItem(context.Background(), "A") }, want: MsgAddFailed},
		{name: "toggle", op: func(c *Controller) error { return c.ToggleItem(context.Background(), "t1") }, want: MsgUpdateFailed},
		{name: "delete", op: func(c *Controller) error { return c.DeleteItem(context.Background(), "t1") }, want: MsgDeleteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, identity := setupTestController(t)
			identity.userID = ""

			if err := tt.op(c); !errors.Is(err, ErrNotSignedIn) {
				t.Errorf("expected ErrNotSignedIn, got %v", err)
			}
			assertError(t, c, tt.want)
			if store.callCount() != 0 {
				t.Errorf("expected no store calls, got %d", store.callCount())
			}
		})
	}
}

func TestLogin(t *testing.T) {
	c, store, identity := setupTestController(t)
	ctx := context.Background()
	identity.userID = ""
	store.Create(ctx, "uid-ada@example.com", "hers")

	if err := c.Login(ctx, "ada@example.com", "secret1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if diff := cmp.Diff([]string{"hers"}, itemTexts(c.Items())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	assertNoError(t, c)
}

func TestLogin_Failure(t *testing.T) {
	c, _, identity := setupTestController(t)
	identity.userID = ""
	identity.loginErr = errors.New("invalid email or password")

	if err := c.Login(context.Background(), "ada@example.com", "nope"); err == nil {
		t.Fatal("expected Login to fail")
	}
	assertError(t, c, "Failed to sign in: invalid email or password")
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		confirm   string
		signupErr error
		wantErr   string
		wantCalls int
	}{
		{name: "success", password: "secret1", confirm: "secret1", wantCalls: 1},
		{name: "mismatch", password: "secret1", confirm: "secret2", wantErr: MsgPasswordMismatch, wantCalls: 0},
		{
			name:      "provider failure",
			password:  "secret1",
			confirm:   "secret1",
			signupErr: errors.New("the email address is already in use by another account"),
			wantErr:   "Failed to create an account: the email address is already in use by another account",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, identity := setupTestController(t)
			identity.userID = ""
			identity.signupErr = tt.signupErr

			err := c.Signup(context.Background(), "ada@example.com", tt.password, tt.confirm)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Signup failed: %v", err)
				}
				assertNoError(t, c)
				if uid, _ := identity.CurrentUserID(); uid != "uid-ada@example.com" {
					t.Errorf("expected signed-in user, got %q", uid)
				}
			} else {
				if err == nil {
					t.Fatal("expected Signup to fail")
				}
				assertError(t, c, tt.wantErr)
			}
			if identity.calls != tt.wantCalls {
				t.Errorf("expected %d provider calls, got %d", tt.wantCalls, identity.calls)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	c, _, identity := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	c.SetFilter(models.FilterCompleted)
	c.SetInput("draft")

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Items) != 0 || snap.Filter != models.FilterAll || snap.Input != "" || snap.Error.IsSet() {
		t.Errorf("expected reset state, got %+v", snap)
	}
	if _, ok := identity.CurrentUserID(); ok {
		t.Error("expected provider to be signed out")
	}
}

func TestLogout_Failure(t *testing.T) {
	c, _, identity := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	identity.logoutErr = errors.New("network down")

	if err := c.Logout(ctx); err == nil {
		t.Fatal("expected Logout to fail")
	}
	if len(c.Items()) != 1 {
		t.Errorf("expected items kept, got %d", len(c.Items()))
	}
	assertError(t, c, MsgLogoutFailed)
}

func TestSnapshot(t *testing.T) {
	c, _, _ := setupTestController(t)
	ctx := context.Background()
	c.AddItem(ctx, "A")
	c.AddItem(ctx, "B")
	c.ToggleItem(ctx, c.Items()[0].ID)
	c.SetFilter(models.FilterActive)
	c.SetInput("C")

	snap := c.Snapshot()
	if diff := cmp.Diff([]string{"B", "A"}, itemTexts(snap.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A"}, itemTexts(snap.Visible)); diff != "" {
		t.Errorf("visible mismatch (-want +got):\n%s", diff)
	}
	if snap.Filter != models.FilterActive || snap.Input != "C" || snap.Pending || snap.Error.IsSet() {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	// Snapshots do not alias controller state.
	snap.Items[0].Text = "changed"
	if c.Items()[0].Text != "B" {
		t.Error("snapshot mutation leaked into controller")
	}
}

func TestErrorMessage(t *testing.T) {
	var none ErrorMessage
	if _, ok := none.Get(); ok {
		t.Error("expected zero value to hold no message")
	}
	if none.String() != "<none>" {
		t.Errorf("unexpected String for none: %q", none.String())
	}

	empty := SomeError("")
	if text, ok := empty.Get(); !ok || text != "" {
		t.Errorf("expected present empty message, got %q, %v", text, ok)
	}
	if empty == none {
		t.Error("expected empty message to differ from no message")
	}
}
