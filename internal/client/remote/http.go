package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pocketsync/internal/api"
	"pocketsync/internal/client/models"
	"pocketsync/internal/common"
)

// HTTPClient implements Client over the backend's JSON API. An access token
// obtained at login is attached to authenticated calls; when the server
// rejects it as expired, the token pair is refreshed once and the request
// retried, mirroring what an interceptor would do.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewHTTPClient returns a client for the backend at baseURL
// (e.g. "http://127.0.0.1:8080"). timeout bounds every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Register(ctx context.Context, user *models.User, password string) error {
	req := api.RegisterRequest{ID: user.ID, Name: user.Name, Email: user.Email, Password: password}
	var resp api.RegisterResponse
	return c.doJSON(ctx, http.MethodPost, "/api/register", req, &resp, false)
}

func (c *HTTPClient) Login(ctx context.Context, email string, password string) (*models.User, error) {
	req := api.LoginRequest{Email: email, Password: password}
	var resp api.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", req, &resp, false); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.mu.Unlock()

	return fromPayload(resp.User), nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var resp api.PingResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/ping", nil, &resp, false); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return common.ErrorUnavailable
	}
	return nil
}

func (c *HTTPClient) Sync(ctx context.Context, pending []*models.User, sinceVersion int64) ([]*models.User, []*models.User, int64, error) {
	req := api.SyncRequest{SinceVersion: sinceVersion, Records: make([]api.UserPayload, 0, len(pending))}
	for _, u := range pending {
		req.Records = append(req.Records, toPayload(u))
	}

	var resp api.SyncResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/sync", req, &resp, true); err != nil {
		return nil, nil, 0, err
	}

	processed := make([]*models.User, 0, len(resp.Processed))
	for _, p := range resp.Processed {
		processed = append(processed, fromPayload(p))
	}
	updated := make([]*models.User, 0, len(resp.Updated))
	for _, p := range resp.Updated {
		updated = append(updated, fromPayload(p))
	}

	return processed, updated, resp.MaxVersion, nil
}

func (c *HTTPClient) AvatarUploadURL(ctx context.Context) (string, string, error) {
	var resp api.AvatarURLResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/avatar/upload-url", nil, &resp, true); err != nil {
		return "", "", err
	}
	return resp.Key, resp.URL, nil
}

func (c *HTTPClient) AvatarDownloadURL(ctx context.Context, key string) (string, error) {
	var resp api.AvatarURLResponse
	path := "/api/avatar/download-url?key=" + key
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func toPayload(u *models.User) api.UserPayload {
	return api.UserPayload{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Version:   u.Version,
		Deleted:   u.Deleted,
		CreatedAt: u.CreatedAt,
	}
}

func fromPayload(p api.UserPayload) *models.User {
	return &models.User{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Version:   p.Version,
		Deleted:   p.Deleted,
		CreatedAt: p.CreatedAt,
	}
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any, authed bool) error {
	err := c.doOnce(ctx, method, path, in, out, authed)
	if err == nil || !authed {
		return err
	}

	// expired access token: refresh the pair once and replay the request
	if !errors.Is(err, common.ErrTokenExpired) {
		return err
	}
	if err := c.refresh(ctx); err != nil {
		return err
	}
	return c.doOnce(ctx, method, path, in, out, authed)
}

// tokenExpiredMessage is the backend's error body for an expired (but
// otherwise valid) access token. Any other 401 is a hard failure.
var tokenExpiredMessage = common.ErrTokenExpired.Error()

func (c *HTTPClient) refresh(ctx context.Context) error {
	c.mu.Lock()
	token := c.refreshToken
	c.mu.Unlock()

	if token == "" {
		return common.ErrorUnauthorized
	}

	var resp api.RefreshResponse
	if err := c.doOnce(ctx, http.MethodPost, "/api/refresh", api.RefreshRequest{RefreshToken: token}, &resp, false); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		c.mu.Lock()
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		c.mu.Unlock()
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatus(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// mapStatus converts an error response into a sentinel error so callers can
// use errors.Is regardless of transport.
func mapStatus(resp *http.Response) error {
	var body api.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if body.Error == tokenExpiredMessage {
			return common.ErrTokenExpired
		}
		return common.ErrorUnauthorized
	case http.StatusConflict:
		return common.ErrorEmailTaken
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", common.ErrorValidation, body.Error)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return common.ErrorUnavailable
	default:
		return fmt.Errorf("server error: %s (%d)", body.Error, resp.StatusCode)
	}
}
