// Package remote is the network client for the todo API. A Client is both a
// store.DocumentStore and the identity provider consumed by sessions.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mytodos/internal/accounts"
	"mytodos/internal/models"
	"mytodos/internal/store"
)

// ErrUnauthorized is matched by responses rejected for missing or foreign credentials.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response from the API. Message is the response body.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Code)
}

// Is maps status codes onto the sentinel errors callers branch on.
func (e *StatusError) Is(target error) bool {
	switch target {
	case store.ErrNotFound:
		return e.Code == http.StatusNotFound
	case store.ErrEmailTaken:
		return e.Code == http.StatusConflict
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
	}
	return false
}

// Client talks to the API over HTTP and remembers the signed-in user.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
	user  *models.User
}

// New creates a client for the API at baseURL. A nil httpClient uses a
// client with a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Restore seeds the client with previously saved credentials.
func (c *Client) Restore(token string, user models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.user = &user
}

// Credentials returns the current token and user, if signed in.
func (c *Client) Credentials() (string, models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return "", models.User{}, false
	}
	return c.token, *c.user, true
}

// CurrentUserID returns the signed-in user's id.
func (c *Client) CurrentUserID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return "", false
	}
	return c.user.ID, true
}

// Signup creates an account and signs it in.
func (c *Client) Signup(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/v1/accounts", email, password)
}

// Login signs an existing account in.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/v1/sessions", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) error {
	var sess accounts.Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &sess); err != nil {
		return err
	}
	c.Restore(sess.Token, sess.User)
	return nil
}

// Logout revokes the current token and forgets the user. A token the server
// no longer recognizes counts as signed out.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/v1/sessions/current", nil, nil, nil)
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}

	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.mu.Unlock()
	return nil
}

// WhoAmI asks the server which user the current token belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/current", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Query lists a collection in the given order.
func (c *Client) Query(ctx context.Context, collection string, order store.Order) ([]store.Document, error) {
	path, err := collectionURL(collection)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if order.Field != "" {
		params.Set("orderBy", order.Field)
	}
	if order.Descending {
		params.Set("direction", "desc")
	}

	var resp struct {
		Documents []store.Document `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, path, params, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Documents == nil {
		resp.Documents = []store.Document{}
	}
	return resp.Documents, nil
}

// Add inserts a document and returns its server-assigned id.
func (c *Client) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	path, err := collectionURL(collection)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, fields, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Update merges fields into a document.
func (c *Client) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	path, err := collectionURL(collection)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path+"/"+url.PathEscape(id), nil, fields, nil)
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	path, err := collectionURL(collection)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path+"/"+url.PathEscape(id), nil, nil, nil)
}

// collectionURL maps "users/{uid}/{name}" onto its API path. The API only
// serves per-user collections.
func collectionURL(collection string) (string, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return "", err
	}
	segments := strings.Split(collection, "/")
	if len(segments) != 3 || segments[0] != "users" {
		return "", fmt.Errorf("%w: %q is not a per-user collection", store.ErrInvalidPath, collection)
	}
	return "/v1/users/" + url.PathEscape(segments[1]) + "/" + url.PathEscape(segments[2]), nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
