// Package httputil provides the outbound HTTP client used for upstream
// market data: rate limited, bounded retries and size-capped bodies.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRetries   = 2
	defaultBodyLimit = 1 << 20
	retryBackoff     = 200 * time.Millisecond
)

// =============================================================================
// Client
// =============================================================================

// Client issues GET requests against one base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	limiter    *rate.Limiter
}

// ClientConfig configures the client. Zero RPS disables rate limiting.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RPS        float64
	Burst      int
	HTTPClient *http.Client
}

// NewClient creates a client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: maxRetries,
		limiter:    limiter,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// Get fetches path with query and returns the body. Transport errors and 5xx
// responses are retried up to MaxRetries times.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		body, retry, err := c.do(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, target string) ([]byte, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, truncated, err := ReadAllWithLimit(resp.Body, defaultBodyLimit)
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		return nil, resp.StatusCode >= 500, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	if truncated {
		return nil, false, fmt.Errorf("response body exceeds %d bytes", defaultBodyLimit)
	}
	return body, false, nil
}

// ReadAllWithLimit reads at most limit bytes and reports whether more remained.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}
