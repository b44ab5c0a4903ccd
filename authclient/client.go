// Package authclient is the Go client for the fieldfront auth endpoints.
//
// A Client owns the "am I logged in" state the way the mobile UI's route
// guards consume it: a user snapshot, a loading flag, and the last error.
// Instances are isolated; create one per session or test, there is no
// package-level singleton.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// User mirrors the user object returned by the auth endpoints.
type User struct {
	AccessToken  string         `json:"access_token"`
	IDToken      string         `json:"id_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type"`
	Profile      map[string]any `json:"profile"`
}

// State is a snapshot of the auth state machine. Exactly one of loading,
// errored, authenticated, or unauthenticated describes it at any time.
type State struct {
	User    *User
	Loading bool
	Err     error
}

// Authenticated reports whether a user is present.
func (s State) Authenticated() bool {
	return s.User != nil
}

// APIError conveys an HTTP failure from the auth endpoints.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authclient: http %d: %s", e.Status, e.Message)
}

// Config controls how the client talks to the fieldfront server.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client

	// Bypass short-circuits every operation to an immediately
	// authenticated synthetic user without contacting any endpoint.
	// Local development only; never enable in a deployed instance.
	Bypass bool
}

// Client drives the four auth operations and owns the resulting state.
// A second operation issued before the first resolves will race, and the
// last response to resolve wins the final state; callers should disable
// concurrent invocation at the UI layer.
type Client struct {
	baseURL string
	http    *http.Client
	bypass  bool

	mu    sync.Mutex
	state State
	group singleflight.Group
}

// New constructs a Client. The HTTP client gets a cookie jar if it has
// none, since the session lives entirely in cookies.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("authclient: base url required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("authclient: creating cookie jar: %w", err)
		}
		client.Jar = jar
	}

	return &Client{
		baseURL: strings.TrimSuffix(base, "/"),
		http:    client,
		bypass:  cfg.Bypass,
	}, nil
}

// State returns the current snapshot.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load runs the mount-time session query: authenticated or unauthenticated
// depending on whether a session exists. An endpoint failure leaves the
// client unauthenticated with the error recorded.
func (c *Client) Load(ctx context.Context) (State, error) {
	if c.bypass {
		return c.setUser(bypassUser()), nil
	}

	c.setLoading()
	user, err := c.fetchSession(ctx)
	if err != nil {
		return c.setError(nil, err), err
	}
	return c.setUser(user), nil
}

// RefreshSession re-runs the session query on demand. Concurrent calls are
// collapsed into a single request.
func (c *Client) RefreshSession(ctx context.Context) (State, error) {
	if c.bypass {
		return c.setUser(bypassUser()), nil
	}

	c.setLoading()
	result, err, _ := c.group.Do("session", func() (any, error) {
		return c.fetchSession(ctx)
	})
	if err != nil {
		return c.setError(nil, err), err
	}
	return c.setUser(result.(*User)), nil
}

// SignIn exchanges credentials for a cookie session, then re-runs the
// session query to populate state. The error is returned so login screens
// can display it.
func (c *Client) SignIn(ctx context.Context, identifier, password string) (State, error) {
	if c.bypass {
		return c.setUser(bypassUser()), nil
	}

	c.setLoading()

	payload, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return c.setError(nil, err), err
	}

	resp, err := c.post(ctx, "/api/auth/login", payload)
	if err != nil {
		return c.setError(nil, err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := apiError(resp)
		return c.setError(nil, err), err
	}
	io.Copy(io.Discard, resp.Body)

	user, err := c.fetchSession(ctx)
	if err != nil {
		return c.setError(nil, err), err
	}
	return c.setUser(user), nil
}

// SignOut clears the cookie session. The local user state is cleared even
// when the endpoint call fails; the failure is recorded and returned.
func (c *Client) SignOut(ctx context.Context) (State, error) {
	if c.bypass {
		return c.setUser(nil), nil
	}

	c.setLoading()

	var opErr error
	resp, err := c.post(ctx, "/api/auth/logout", nil)
	if err != nil {
		opErr = err
	} else {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			opErr = apiError(resp)
		} else {
			io.Copy(io.Discard, resp.Body)
		}
	}

	if opErr != nil {
		return c.setError(nil, opErr), opErr
	}
	return c.setUser(nil), nil
}

// fetchSession performs the session query. A 401 means no session and is
// not an error.
func (c *Client) fetchSession(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/session", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var body struct {
		User *User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("authclient: decoding session: %w", err)
	}
	return body.User, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func (c *Client) setLoading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{User: c.state.User, Loading: true}
}

func (c *Client) setUser(user *User) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{User: user}
	return c.state
}

func (c *Client) setError(user *User, err error) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{User: user, Err: err}
	return c.state
}

func apiError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	return &APIError{Status: resp.StatusCode, Message: body.Message}
}

func bypassUser() *User {
	return &User{
		AccessToken: "local-dev-access-token",
		TokenType:   "Bearer",
		Profile: map[string]any{
			"email": "dev@localhost",
			"name":  "Local Developer",
		},
	}
}
