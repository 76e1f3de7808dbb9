// Package client is the remote persistence adapter: it speaks to the
// dashboard HTTP API with a bearer token and satisfies storage.Store, so a
// dashboard session can run against the server the same way it runs against
// guest storage.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ryanbastic/go-dashboard/internal/snapshot"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/weather"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// Client calls the dashboard API. The owner argument of the storage
// methods is ignored; the server derives the owner from the token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets how often GET requests are retried on network errors and
// 5xx responses, and the base of the exponential backoff between tries.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 2,
		baseDelay:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type dashboardResponse struct {
	Dashboard widget.Dashboard `json:"dashboard"`
	Widgets   []widget.Widget  `json:"widgets"`
}

func (c *Client) LoadDashboardWithWidgets(ctx context.Context, _ string) (*widget.Dashboard, []widget.Widget, error) {
	var resp dashboardResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/dashboard", nil, &resp); err != nil {
		return nil, nil, fmt.Errorf("load dashboard: %w", err)
	}
	return &resp.Dashboard, resp.Widgets, nil
}

func (c *Client) PatchDashboard(ctx context.Context, _ string, patch widget.DashboardPatch) (*widget.Dashboard, error) {
	if patch.IsEmpty() {
		return nil, storage.ErrEmptyUpdate
	}
	var d widget.Dashboard
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/dashboard", patch, &d); err != nil {
		return nil, fmt.Errorf("patch dashboard: %w", err)
	}
	return &d, nil
}

type createWidgetRequest struct {
	DashboardID string          `json:"dashboard_id"`
	Type        widget.Type     `json:"type"`
	PositionX   int             `json:"position_x"`
	PositionY   int             `json:"position_y"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Settings    json.RawMessage `json:"settings,omitempty"`
}

func (c *Client) CreateWidget(ctx context.Context, _ string, w widget.Widget) (*widget.Widget, error) {
	settings, err := widget.MarshalSettings(w.Settings)
	if err != nil {
		return nil, fmt.Errorf("create widget: %w", err)
	}
	req := createWidgetRequest{
		DashboardID: w.DashboardID,
		Type:        w.Type,
		PositionX:   w.PositionX,
		PositionY:   w.PositionY,
		Width:       w.Width,
		Height:      w.Height,
		Settings:    settings,
	}
	var created widget.Widget
	if err := c.doJSON(ctx, http.MethodPost, "/v1/widgets", req, &created); err != nil {
		return nil, fmt.Errorf("create widget: %w", err)
	}
	return &created, nil
}

func (c *Client) PatchWidget(ctx context.Context, _ string, widgetID string, patch widget.WidgetPatch) (*widget.Widget, error) {
	if patch.IsEmpty() {
		return nil, storage.ErrEmptyUpdate
	}
	var updated widget.Widget
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/widgets/"+url.PathEscape(widgetID), patch, &updated); err != nil {
		return nil, fmt.Errorf("patch widget %s: %w", widgetID, err)
	}
	return &updated, nil
}

func (c *Client) DeleteWidget(ctx context.Context, _ string, widgetID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/widgets/"+url.PathEscape(widgetID), nil, nil); err != nil {
		return fmt.Errorf("delete widget %s: %w", widgetID, err)
	}
	return nil
}

// ReplaceAll posts a snapshot of d and widgets to the import endpoint, which
// swaps them in one transaction, and returns the stored result.
func (c *Client) ReplaceAll(ctx context.Context, owner string, d widget.Dashboard, widgets []widget.Widget) (*widget.Dashboard, []widget.Widget, error) {
	raw, err := snapshot.Encode(snapshot.New(d, widgets, nil, time.Now()))
	if err != nil {
		return nil, nil, err
	}
	if _, err := c.Import(ctx, raw); err != nil {
		return nil, nil, err
	}
	return c.LoadDashboardWithWidgets(ctx, owner)
}

// Export downloads the snapshot document exactly as the server renders it.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/dashboard/export", nil)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return resp, nil
}

// Import uploads a snapshot document and returns the number of widgets the
// server wrote.
func (c *Client) Import(ctx context.Context, raw []byte) (int, error) {
	body, err := c.do(ctx, http.MethodPost, "/v1/dashboard/import", raw)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	var resp struct {
		ImportedWidgets int `json:"importedWidgets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("unmarshal import response: %w", err)
	}
	return resp.ImportedWidgets, nil
}

// Current implements weather.Provider through the server's weather proxy.
func (c *Client) Current(ctx context.Context, city, unit string) (*weather.Conditions, error) {
	if err := weather.ValidateQuery(city, unit); err != nil {
		return nil, err
	}
	q := url.Values{"city": {city}, "unit": {unit}}
	var cond weather.Conditions
	if err := c.doJSON(ctx, http.MethodGet, "/v1/weather?"+q.Encode(), nil, &cond); err != nil {
		return nil, fmt.Errorf("weather %s: %w", city, err)
	}
	return &cond, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	body, err := c.do(ctx, method, path, data)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// do sends one request. GETs are retried with exponential backoff on
// network errors and 5xx responses; other methods are sent once.
func (c *Client) do(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	attempts := 1
	if method == http.MethodGet {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.doRequest(ctx, method, path, data)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}

		if attempt < attempts-1 {
			delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "http request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 500 && apiErr.Status != http.StatusServiceUnavailable
}
