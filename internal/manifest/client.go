// Package manifest is a client for the Manifest backend-as-a-service REST API.
//
// A Client holds at most one bearer token. Login and Signup store the token
// returned by the backend; Logout drops it. Clients derived with WithToken
// share the underlying HTTP transport.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/foodapp/internal/httputil"
)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB

	appIDHeader = "X-App-Id"
)

// CallObserver is notified after every backend call.
type CallObserver func(operation string, err error, duration time.Duration)

// Config configures a Client.
type Config struct {
	BaseURL    string
	AppID      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   CallObserver
}

// Client talks to one Manifest backend.
type Client struct {
	baseURL    string
	appID      string
	httpClient *http.Client
	observer   CallObserver

	mu    sync.RWMutex
	token string
}

// NewClient validates cfg and creates a Client without a token.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("manifest base URL is required")
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("manifest base URL must be absolute: %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httputil.NewClient(cfg.Timeout)
	}

	return &Client{
		baseURL:    base,
		appID:      cfg.AppID,
		httpClient: httpClient,
		observer:   cfg.Observer,
	}, nil
}

// WithToken returns a Client sharing c's transport and carrying token.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:    c.baseURL,
		appID:      c.appID,
		httpClient: c.httpClient,
		observer:   c.observer,
		token:      token,
	}
}

// Token returns the current bearer token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HasToken reports whether the client carries a bearer token.
func (c *Client) HasToken() bool {
	return c.Token() != ""
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Logout drops the bearer token. The backend keeps no server-side session,
// so nothing is sent over the network.
func (c *Client) Logout(ctx context.Context) error {
	start := time.Now()
	c.setToken("")
	c.observe("logout", ctx.Err(), time.Since(start))
	return ctx.Err()
}

// Health checks that the backend answers on path.
func (c *Client) Health(ctx context.Context, path string) error {
	if path == "" {
		path = "/api/health"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	_, err = c.do(req, "health")
	return err
}

// doJSON sends body as JSON to the API path and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, query neturl.Values, body, out interface{}) error {
	url := c.baseURL + "/api" + path
	if len(query) > 0 {
		url += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	data, err := c.do(req, operation)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.appID != "" {
		req.Header.Set(appIDHeader, c.appID)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// do executes req and returns the body of a 2xx response. Non-2xx responses
// become *APIError.
func (c *Client) do(req *http.Request, operation string) (data []byte, err error) {
	start := time.Now()
	defer func() { c.observe(operation, err, time.Since(start)) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: execute request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, maxErrorBodyBytes)
		if readErr != nil {
			return nil, fmt.Errorf("%s: read error response: %w", operation, readErr)
		}
		return nil, newAPIError(operation, resp.StatusCode, body, truncated)
	}

	data, err = httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", operation, err)
	}
	return data, nil
}

func (c *Client) observe(operation string, err error, d time.Duration) {
	if c.observer != nil {
		c.observer(operation, err, d)
	}
}
