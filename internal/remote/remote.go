package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/runboardhq/runboard/internal/circuitbreaker"
	"github.com/runboardhq/runboard/internal/models"
	"github.com/runboardhq/runboard/internal/observability"
	"github.com/runboardhq/runboard/internal/provider"
)

// Client reads scalar data from a remote runboard data server over HTTP.
// Retries transient failures with exponential backoff and jitter.
type Client struct {
	baseURL        string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// New creates a Client with default retry settings.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	return NewWithRetry(baseURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

// NewWithRetry creates a Client with explicit retry settings.
func NewWithRetry(baseURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid data server URL %q", baseURL)
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker installs a breaker around individual HTTP calls.
// Call before serving traffic; not safe to swap concurrently.
func (c *Client) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type runsResponse struct {
	Runs []string `json:"runs"`
}

type tagsResponse struct {
	Run  string   `json:"run"`
	Tags []string `json:"tags"`
}

// ListRuns fetches the run list from the data server.
func (c *Client) ListRuns(ctx context.Context) ([]string, error) {
	var out runsResponse
	if err := c.getJSONWithRetry(ctx, "/api/runs", &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// ListTags fetches the tag list for a run.
func (c *Client) ListTags(ctx context.Context, run string) ([]string, error) {
	var out tagsResponse
	path := "/api/runs/" + url.PathEscape(run) + "/tags"
	if err := c.getJSONWithRetry(ctx, path, &out); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", provider.ErrRunNotFound, run)
		}
		return nil, err
	}
	return out.Tags, nil
}

// ReadScalars fetches the scalar series for run/tag.
func (c *Client) ReadScalars(ctx context.Context, run, tag string) (models.ScalarSeries, error) {
	var out models.ScalarSeries
	path := "/api/scalars/" + url.PathEscape(run) + "/" + url.PathEscape(tag)
	if err := c.getJSONWithRetry(ctx, path, &out); err != nil {
		if errors.Is(err, errNotFound) {
			return models.ScalarSeries{}, fmt.Errorf("%w: %s in run %s", provider.ErrTagNotFound, tag, run)
		}
		return models.ScalarSeries{}, err
	}
	out.FetchedAt = time.Now()
	return out, nil
}

// Check verifies the data server responds to the run listing endpoint.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var out runsResponse
	return c.getJSON(ctx, "/api/runs", &out)
}

// errNotFound distinguishes 404 so callers can map it to run vs tag not found.
var errNotFound = errors.New("not found")

// getJSONWithRetry wraps getJSON with bounded exponential backoff. Not-found
// and other non-retryable errors return immediately.
func (c *Client) getJSONWithRetry(ctx context.Context, path string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.call(ctx, path, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

// call runs one HTTP attempt, through the circuit breaker when installed.
func (c *Client) call(ctx context.Context, path string, out interface{}) error {
	if c.breaker == nil {
		return c.getJSON(ctx, path, out)
	}
	return c.breaker.Call(ctx, func() error {
		return c.getJSON(ctx, path, out)
	})
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", c.baseURL+path, nil)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		observability.ProviderDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(status).Inc()
	observability.ProviderDuration.WithLabelValues(status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, provider.ErrRateLimited) || errors.Is(err, provider.ErrUnavailable) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "context canceled")
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errNotFound
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", provider.ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", provider.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", provider.ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
