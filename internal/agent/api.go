package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// APIClient talks to the server's REST surface with a bearer token.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient constructs a client for baseURL (scheme://host[:port]).
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return err
		}
		rd = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.ErrUnauthorized
	case resp.StatusCode >= 400:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, e.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// MintToken exchanges a proven email for an access token.
func (c *APIClient) MintToken(ctx context.Context, email, provider string) (model.Tokens, error) {
	var tokens model.Tokens
	err := c.do(ctx, http.MethodPost, "/auth/token",
		map[string]string{"email": email, "provider": provider}, &tokens)
	return tokens, err
}

// ListURLs fetches the authoritative live collection.
func (c *APIClient) ListURLs(ctx context.Context) ([]model.SavedURL, error) {
	var out []model.SavedURL
	err := c.do(ctx, http.MethodGet, "/api/urls", nil, &out)
	return out, err
}

// AddURLs submits new items and returns the rows actually inserted.
func (c *APIClient) AddURLs(ctx context.Context, items []model.NewURL) ([]model.SavedURL, error) {
	var out []model.SavedURL
	err := c.do(ctx, http.MethodPost, "/api/urls", map[string]any{"urls": items}, &out)
	return out, err
}

// DeleteURLs tombstones the given ids.
func (c *APIClient) DeleteURLs(ctx context.Context, ids []uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/urls", map[string]any{"ids": ids}, nil)
}

// ListDevices fetches the device roster.
func (c *APIClient) ListDevices(ctx context.Context) ([]model.Device, error) {
	var out []model.Device
	err := c.do(ctx, http.MethodGet, "/api/devices", nil, &out)
	return out, err
}

// RegisterDevice upserts this installation and returns the stored row.
func (c *APIClient) RegisterDevice(ctx context.Context, info model.DeviceInfo) (*model.Device, error) {
	var out model.Device
	if err := c.do(ctx, http.MethodPost, "/api/devices", info, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
