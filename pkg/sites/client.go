package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/retry"
)

// Client is the HTTP client shared by all adapters of one run. It carries the
// per-site user agent, optional basic auth, and bounded retry for transient
// failures.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	username   string
	apiKey     string
	maxRetries int
	logger     logger.Logger
}

// NewClient creates a client for the given imageboard.
func NewClient(board Imageboard, timeout time.Duration, maxRetries int, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": board.UserAgent(),
			"Accept":     "application/json",
		},
		maxRetries: maxRetries,
		logger:     log,
	}
}

// SetBasicAuth attaches credentials to every subsequent request.
func (c *Client) SetBasicAuth(username, apiKey string) {
	c.username = username
	c.apiKey = apiKey
}

// SetHeader sets a custom header for the client.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHTTPClient swaps the underlying transport. Tests use it to inject
// recorded responses.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// doRequest performs one HTTP request with the configured headers and auth.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Connection(err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// GetJSON requests rawURL with query parameters and decodes the JSON body
// into target. Transient failures (network, 429, 5xx) are retried a bounded
// number of times.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, target interface{}) error {
	fullURL := rawURL
	if len(query) > 0 {
		sep := "?"
		if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		fullURL = rawURL + sep + query.Encode()
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return errs.Connection(err)
		}

		resp, err := c.doRequest(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Connection(err)
		}

		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          fullURL,
				"status":       resp.StatusCode,
				"error":        err.Error(),
				"body_preview": preview,
			})
			return &errs.Error{
				Kind:    errs.KindInvalidServerResponse,
				Message: "failed to parse JSON",
				Err:     err,
			}
		}

		return nil
	}

	return retry.Do(op, &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     retry.DefaultExponentialBackoff(),
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	})
}

// Fetch issues a plain GET and hands the response back for body streaming.
// The caller owns the body and must inspect the status code; 4xx responses
// are returned, not turned into errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Connection(err)
	}

	return c.doRequest(req)
}

// checkResponseStatus maps non-success API statuses onto pipeline errors.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.Authentication(fmt.Sprintf("site rejected request with status %d", resp.StatusCode), nil)
	case errs.IsRetryableStatusCode(resp.StatusCode):
		return errs.Connection(fmt.Errorf("server returned status %d", resp.StatusCode))
	default:
		return &errs.Error{
			Kind:    errs.KindInvalidServerResponse,
			Message: fmt.Sprintf("unexpected status code %d", resp.StatusCode),
		}
	}
}
