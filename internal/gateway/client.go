// Package gateway is the authenticated HTTP client for the backend API.
// It attaches the session bearer token to every call and performs exactly
// one transparent refresh-and-retry on a 401. Non-auth failures are never
// retried here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"talktrack/internal/entity"
	"talktrack/internal/session"
	"talktrack/internal/shared/telemetry"
)

// Options tune the client's timeouts.
type Options struct {
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
}

// Client issues requests against the backend resource surface.
type Client struct {
	baseURL   string
	http      *http.Client
	upload    *http.Client
	session   *session.Store
	refreshMu sync.Mutex
}

// New constructs a Client for the given base URL and session store.
func New(baseURL string, sess *session.Store, opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: opts.RequestTimeout},
		upload:  &http.Client{Timeout: opts.UploadTimeout},
		session: sess,
	}
}

// tokenPair mirrors the token endpoint responses.
type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User is the current-user lookup payload.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Login obtains a token pair with username (or email) and password and
// installs it in the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var pair tokenPair
	err := c.doJSON(ctx, http.MethodPost, "/api/token/", map[string]string{
		"username": username,
		"password": password,
	}, &pair, false)
	if err != nil {
		return err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return &Error{Kind: KindShape, Message: "token response missing access or refresh"}
	}
	c.session.SetTokens(pair.Access, pair.Refresh)
	return nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/register/", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil, false)
}

// Me returns the current user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.doJSON(ctx, http.MethodGet, "/api/profile/", nil, &u, true)
	return u, err
}

// List fetches the ordered entity collection for the kind. The server may
// answer with a bare array or a paginated envelope; both are accepted.
func (c *Client) List(ctx context.Context, kind entity.Kind) ([]entity.Entity, error) {
	body, err := c.doRaw(ctx, http.MethodGet, "/api/"+kind.Resource()+"/", nil, true)
	if err != nil {
		return nil, err
	}
	entities, err := decodeList(body)
	if err != nil {
		return nil, err
	}
	for i := range entities {
		entities[i].Kind = kind
	}
	return entities, nil
}

// Get fetches one entity and returns the field set the response carried,
// for field-level merging into the store.
func (c *Client) Get(ctx context.Context, kind entity.Kind, id int64) (entity.Fields, error) {
	body, err := c.doRaw(ctx, http.MethodGet, fmt.Sprintf("/api/%s/%d/", kind.Resource(), id), nil, true)
	if err != nil {
		return nil, err
	}
	fields, err := entity.DecodeFields(body)
	if err != nil {
		return nil, &Error{Kind: KindShape, Message: "entity response is not an object", Err: err}
	}
	return fields, nil
}

// Patch writes a subset of mutable fields. An explicit nil value clears a
// nullable field (e.g. audio_file). Returns the server's authoritative
// field set for reconciliation.
func (c *Client) Patch(ctx context.Context, kind entity.Kind, id int64, fields map[string]any) (entity.Fields, error) {
	body, err := c.doRaw(ctx, http.MethodPatch, fmt.Sprintf("/api/%s/%d/", kind.Resource(), id), fields, true)
	if err != nil {
		return nil, err
	}
	out, err := entity.DecodeFields(body)
	if err != nil {
		return nil, &Error{Kind: KindShape, Message: "patch response is not an object", Err: err}
	}
	return out, nil
}

// Delete removes the entity.
func (c *Client) Delete(ctx context.Context, kind entity.Kind, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/%s/%d/", kind.Resource(), id), nil, nil, true)
}

// DownloadURL returns a short-lived link for the stored media. The link
// is used once and never stored.
func (c *Client) DownloadURL(ctx context.Context, kind entity.Kind, id int64) (string, error) {
	var out struct {
		DownloadURL string `json:"download_url"`
	}
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/%s/%d/download_audio/", kind.Resource(), id), nil, &out, true)
	if err != nil {
		return "", err
	}
	if out.DownloadURL == "" {
		return "", &Error{Kind: KindShape, Message: "download response missing url"}
	}
	return out.DownloadURL, nil
}

// doJSON performs a request and decodes the response into out when
// non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, authed bool) error {
	raw, err := c.doRaw(ctx, method, path, body, authed)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindShape, Message: "unexpected response shape", Err: err}
	}
	return nil
}

// doRaw performs the request with bearer attach and the single
// refresh-and-retry on 401.
func (c *Client) doRaw(ctx context.Context, method, path string, body any, authed bool) ([]byte, error) {
	raw, status, err := c.send(ctx, method, path, body, authed)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && authed {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		raw, status, err = c.send(ctx, method, path, body, authed)
		if err != nil {
			return nil, err
		}
	}
	if status >= 200 && status < 300 {
		return raw, nil
	}
	return nil, errorFromResponse(status, raw)
}

func (c *Client) send(ctx context.Context, method, path string, body any, authed bool) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, &Error{Kind: KindValidation, Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, &Error{Kind: KindTransport, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if authed {
		if token, ok := c.session.AccessToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &Error{Kind: KindTransport, Err: err}
	}
	return raw, resp.StatusCode, nil
}

// refresh exchanges the stored refresh token for a new access token. On
// any failure the session is invalidated (tokens cleared, signal fired
// once) and ErrSessionExpired is returned. Concurrent 401s share one
// refresh.
func (c *Client) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.session.Invalid() {
		return ErrSessionExpired
	}
	refresh, ok := c.session.RefreshToken()
	if !ok {
		c.session.Invalidate()
		return ErrSessionExpired
	}

	raw, status, err := c.send(ctx, http.MethodPost, "/api/token/refresh/", map[string]string{"refresh": refresh}, false)
	if err != nil || status != http.StatusOK {
		telemetry.Warn("gateway.refresh_failed", map[string]any{"status": status})
		c.session.Invalidate()
		return ErrSessionExpired
	}
	var pair tokenPair
	if err := json.Unmarshal(raw, &pair); err != nil || pair.Access == "" {
		c.session.Invalidate()
		return ErrSessionExpired
	}
	c.session.UpdateAccess(pair.Access)
	if pair.Refresh != "" {
		c.session.SetTokens(pair.Access, pair.Refresh)
	}
	return nil
}

// errorFromResponse classifies a non-2xx response, preferring the
// standardized error body when present.
func errorFromResponse(status int, raw []byte) error {
	ge := &Error{Kind: classifyStatus(status), Status: status}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		ge.Code = envelope.Error.Code
		switch {
		case envelope.Error.Message != "":
			ge.Message = envelope.Error.Message
		case envelope.Detail != "":
			ge.Message = envelope.Detail
		}
	}
	if ge.Message == "" {
		ge.Message = http.StatusText(status)
	}
	return ge
}

// decodeList accepts either a bare JSON array of entities or a paginated
// envelope carrying one under "results".
func decodeList(raw []byte) ([]entity.Entity, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entities []entity.Entity
		if err := json.Unmarshal(trimmed, &entities); err != nil {
			return nil, &Error{Kind: KindShape, Message: "list response is not an entity array", Err: err}
		}
		return entities, nil
	}
	var envelope struct {
		Results []entity.Entity `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.Results == nil {
		return nil, &Error{Kind: KindShape, Message: "list response carries no entity array", Err: err}
	}
	return envelope.Results, nil
}
