// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// maxErrorExcerpt bounds the response body kept in an HTTPError.
	maxErrorExcerpt = 512

	userAgent = "rigrun-chat/0.1.0"
)

// Error variables for backend failures.
var (
	// ErrNetwork indicates the response was not ok or had no readable body.
	ErrNetwork = errors.New("network response error or empty body")

	// ErrUnexpectedResponse indicates a 2xx response that could not be decoded.
	ErrUnexpectedResponse = errors.New("unexpected response from backend")
)

// HTTPError represents a non-2xx response.
type HTTPError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// Unwrap lets errors.Is(err, ErrNetwork) match.
func (e *HTTPError) Unwrap() error {
	return ErrNetwork
}

// APIError is a well-formed response whose envelope reports failure.
type APIError struct {
	Op   string
	Code int
	Msg  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s failed (code %d)", e.Op, e.Code)
}

// envelope is the common response wrapper of the backend.
type envelope struct {
	Code int             `json:"code"`
	OK   bool            `json:"ok"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend. It is safe for concurrent use.
type Client struct {
	baseURL string

	// httpClient serves the short JSON calls
	httpClient *http.Client

	// streamClient has no timeout; streams are bounded by their context
	streamClient *http.Client

	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		streamClient: &http.Client{},
		logger:       slog.Default(),
	}
}

// WithTimeout sets the timeout of non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying transport for every request.
// The streaming client keeps no timeout.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = &http.Client{
		Transport:     hc.Transport,
		CheckRedirect: hc.CheckRedirect,
		Jar:           hc.Jar,
	}
	return c
}

// WithRateLimit limits how often requests are issued. Requests beyond the
// limit are delayed, never dropped or repeated. rps <= 0 disables limiting.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the logger used for request logging.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// wait blocks until the limiter admits one more request.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// setHeaders sets the headers common to every backend request.
// Tokens are only ever written to the header, never logged.
func (c *Client) setHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// logResponse logs method, path, status and duration only.
func (c *Client) logResponse(req *http.Request, status int, duration time.Duration) {
	c.logger.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"duration", duration)
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check if we hit the limit (response was truncated)
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}

	return body, nil
}

// handleErrorResponse converts a non-2xx response into an HTTPError with a
// bounded excerpt of the body.
func handleErrorResponse(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))
	return &HTTPError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(excerpt)),
	}
}

// isOK reports whether the status is in the 2xx range.
func isOK(status int) bool {
	return status >= 200 && status < 300
}

// endpoint joins the base URL, path and query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// call performs one JSON request and decodes the response envelope.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, token string, body any) (*envelope, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	c.logResponse(req, resp.StatusCode, time.Since(start))

	if !isOK(resp.StatusCode) {
		return nil, handleErrorResponse(resp)
	}

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &env, nil
}
