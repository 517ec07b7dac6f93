// Package llama is the HTTP client for the upstream yields aggregation API.
package llama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go/failsafehttp"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://yields.llama.fi"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 8 * time.Second
)

// Client fetches pool metadata and per-pool history from the aggregator.
type Client struct {
	baseURL    string
	client     *http.Client
	retryDelay time.Duration
	maxDelay   time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the aggregator base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom http.Client. The retry transport is only
// installed when the client has no Transport of its own.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// withRetryBackoff shortens the retry backoff, used by tests.
func withRetryBackoff(delay, max time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = delay
		c.maxDelay = max
	}
}

// NewClient creates an aggregator client. Requests retry on transport
// errors, 429 and 5xx responses with exponential backoff.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client.Transport == nil {
		retry := retrypolicy.Builder[*http.Response]().
			HandleIf(func(resp *http.Response, err error) bool {
				if err != nil {
					return true
				}
				if resp == nil {
					return false
				}
				if resp.StatusCode == http.StatusTooManyRequests {
					return true
				}
				return resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented
			}).
			WithBackoff(c.retryDelay, c.maxDelay).
			WithMaxRetries(DefaultMaxRetries).
			Build()
		c.client.Transport = failsafehttp.NewRoundTripper(http.DefaultTransport, retry)
	}
	return c
}

// Pools fetches the pool list with each pool's latest observed fields.
func (c *Client) Pools(ctx context.Context) ([]PoolEntry, error) {
	var resp poolsResponse
	if err := c.getJSON(ctx, "/pools", &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("pools request: upstream status %q", resp.Status)
	}
	return resp.Data, nil
}

// Chart fetches the TVL/APY history for one pool.
func (c *Client) Chart(ctx context.Context, poolID string) ([]HistoryPoint, error) {
	if poolID == "" {
		return nil, fmt.Errorf("chart request: empty pool id")
	}

	var resp chartResponse
	if err := c.getJSON(ctx, "/chart/"+url.PathEscape(poolID), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("chart request for %s: upstream status %q", poolID, resp.Status)
	}
	return resp.Data, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
