// Package authclient is a Go client for the WOW auth API that keeps a session alive.
//
// When a call fails with TOKEN_EXPIRED the client refreshes the token pair and retries
// the call once. Concurrent callers that hit an expired token share a single refresh:
// presenting the same refresh token twice would make the server treat it as stolen and
// end the session.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	codeTokenExpired = "TOKEN_EXPIRED"
	refreshKey       = "refresh"
	refreshTimeout   = 15 * time.Second
)

// ErrSessionExpired is returned when the refresh token was rejected; the caller must log in again.
var ErrSessionExpired = errors.New("authclient: session expired")

// Tokens is an immutable access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// IsZero reports whether no session is held.
func (t Tokens) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// APIError is a non-2xx answer decoded from the error envelope.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authclient: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("authclient: %d: %s", e.Status, e.Message)
}

// Client calls the API on behalf of one signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	onRefresh  func(Tokens)

	mu     sync.RWMutex
	tokens Tokens

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokens starts the client with an existing session.
func WithTokens(t Tokens) Option {
	return func(c *Client) { c.tokens = t }
}

// WithRefreshHook is called with every pair obtained by a refresh, e.g. to persist it.
func WithRefreshHook(fn func(Tokens)) Option {
	return func(c *Client) { c.onRefresh = fn }
}

// New returns a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the current pair.
func (c *Client) Tokens() Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// SetTokens replaces the current pair.
func (c *Client) SetTokens(t Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

// Login signs in and stores the resulting pair.
func (c *Client) Login(ctx context.Context, email, password string) (Tokens, error) {
	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	payload := map[string]string{"emailId": email, "password": password}
	if err := c.postJSON(ctx, "/api/auth/login", payload, &out); err != nil {
		return Tokens{}, err
	}

	t := Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	c.SetTokens(t)
	return t, nil
}

// Logout ends the session on the server and forgets the local pair.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	c.SetTokens(Tokens{})
	return nil
}

// Do sends an authenticated request. body, when non-nil, is sent as JSON. A response
// carrying TOKEN_EXPIRED triggers one refresh and one retry; any other response is
// returned as is and the caller owns its body.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("authclient: encode body: %w", err)
		}
	}

	used := c.Tokens()
	resp, err := c.send(ctx, method, path, payload, used.AccessToken)
	if err != nil {
		return nil, err
	}
	if !isTokenExpired(resp) {
		return resp, nil
	}

	fresh, err := c.refresh(ctx, used)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, payload, fresh.AccessToken)
}

// refresh returns a pair newer than stale. If another caller already replaced stale the
// stored pair is returned without a network call; otherwise concurrent callers share one
// request to /refresh.
func (c *Client) refresh(ctx context.Context, stale Tokens) (Tokens, error) {
	if current := c.Tokens(); current.AccessToken != stale.AccessToken {
		return current, nil
	}

	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		current := c.Tokens()
		if current.AccessToken != stale.AccessToken {
			return current, nil
		}

		// The shared refresh must not die with whichever caller happened to start it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.rotate(rctx, current.RefreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Tokens{}, res.Err
		}
		return res.Val.(Tokens), nil
	case <-ctx.Done():
		return Tokens{}, ctx.Err()
	}
}

func (c *Client) rotate(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, ErrSessionExpired
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	err := c.postJSON(ctx, "/api/auth/refresh", map[string]string{"refreshToken": refreshToken}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.SetTokens(Tokens{})
			return Tokens{}, fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
		}
		return Tokens{}, err
	}

	t := Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	c.SetTokens(t)
	if c.onRefresh != nil {
		c.onRefresh(t)
	}
	return t, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("authclient: encode body: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("authclient: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, accessToken string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("authclient: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authclient: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// isTokenExpired peeks at a 401 body. When it is not TOKEN_EXPIRED the body is restored
// so the caller can still read it.
func isTokenExpired(resp *http.Response) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}

	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return false
	}

	var env struct {
		Code string `json:"code"`
	}
	return json.Unmarshal(raw, &env) == nil && env.Code == codeTokenExpired
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
		apiErr.Message = env.Message
		apiErr.Code = env.Code
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
