package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/armorclaw/errwatch/pkg/errors"
)

// ErrNotFound is returned when the daemon has no error with the given id
var ErrNotFound = stderrors.New("error not found")

// APIError is a non-success response from the daemon
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("errwatch: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("errwatch: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running errwatch daemon
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for addr, either host:port or a full URL
func NewClient(addr string) *Client {
	base := strings.TrimSuffix(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the daemon URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List returns every stored error
func (c *Client) List(ctx context.Context) ([]errors.ErrorRecord, error) {
	var records []errors.ErrorRecord
	if err := c.do(ctx, http.MethodGet, "/api/errors", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one error or ErrNotFound
func (c *Client) Get(ctx context.Context, id string) (errors.ErrorRecord, error) {
	var rec errors.ErrorRecord
	err := c.do(ctx, http.MethodGet, "/api/errors/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// Report submits an error and returns the stored record
func (c *Client) Report(ctx context.Context, req ReportRequest) (errors.ErrorRecord, error) {
	var rec errors.ErrorRecord
	err := c.do(ctx, http.MethodPost, "/api/errors", req, &rec)
	return rec, err
}

// Clear removes one error. Unknown ids are not an error.
func (c *Client) Clear(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/errors/"+url.PathEscape(id), nil, nil)
}

// ClearAll removes every error
func (c *Client) ClearAll(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/errors", nil, nil)
}

// Sweep runs an expiry sweep and returns the number of purged errors
func (c *Client) Sweep(ctx context.Context) (int, error) {
	var resp SweepResponse
	if err := c.do(ctx, http.MethodPost, "/api/errors/sweep", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

// Badge returns the current badge
func (c *Client) Badge(ctx context.Context) (BadgeResponse, error) {
	var resp BadgeResponse
	err := c.do(ctx, http.MethodGet, "/api/badge", nil, &resp)
	return resp, err
}

// Health returns the daemon health document
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach errwatch at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
