// Package datarobot is a client for the DataRobot REST API (v2) covering the
// calls needed to build, tune and freeze models: projects, target selection,
// blueprints, model jobs, advanced tuning, features and datetime partitioning.
//
// Long-running requests answer 202 with a Location header. The client follows
// that location by polling (see async.go) and never follows redirects on its
// own, because a 303 from a status endpoint is how the platform reports that
// the work is done.
package datarobot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/okian/drtune/pkg/logger"
)

// Client defaults.
const (
	defaultTimeout         = 10 * time.Minute
	defaultPollInterval    = time.Second
	defaultPollMaxInterval = 30 * time.Second
	defaultUserAgent       = "drtune"
	maxErrorBody           = 64 << 10
)

// Client talks to one platform endpoint with one API token.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	timeout    time.Duration

	token     string
	userAgent string
	requestID string

	pollInterval    time.Duration
	pollMaxInterval time.Duration

	logger logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is wrapped
// for authentication and metrics, and redirects are disabled. WithTimeout
// still applies regardless of option order.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.httpClient = &clone
		}
	}
}

// WithTimeout bounds each HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRequestID tags every request with an X-Request-Id header.
func WithRequestID(id string) Option {
	return func(c *Client) {
		c.requestID = id
	}
}

// WithPollInterval bounds the exponential backoff between status polls.
func WithPollInterval(initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.pollInterval = initial
		}
		if maxInterval >= c.pollInterval {
			c.pollMaxInterval = maxInterval
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client for endpoint (e.g. https://app.datarobot.com/api/v2).
func NewClient(endpoint, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be absolute: %q", endpoint)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty API token", ErrUnauthorized)
	}

	c := &Client{
		endpoint:        u,
		httpClient:      &http.Client{Timeout: defaultTimeout},
		token:           token,
		userAgent:       defaultUserAgent,
		pollInterval:    defaultPollInterval,
		pollMaxInterval: defaultPollMaxInterval,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient.Transport = &instrumentedTransport{
		base:      base,
		basePath:  u.Path,
		token:     c.token,
		userAgent: c.userAgent,
		requestID: c.requestID,
		logger:    c.logger,
	}
	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c, nil
}

// Endpoint returns the API root the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// resolve turns a path relative to the endpoint, an absolute path, or an
// absolute URL (as found in Location headers) into a request URL.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	return c.endpoint.ResolveReference(u).String(), nil
}

// newRequest builds a request with an optional body.
func (c *Client) newRequest(ctx context.Context, method, ref string, body io.Reader, contentType string) (*http.Request, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// send performs req and converts 4xx/5xx answers into *APIError. The caller
// owns the returned body.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer func() { _ = resp.Body.Close() }()
		return nil, newAPIError(req, resp)
	}
	return resp, nil
}

// doJSON sends in as a JSON body (when non-nil) and decodes a JSON answer into
// out (when non-nil). The returned response has its body closed; its headers
// remain available.
func (c *Client) doJSON(ctx context.Context, method, ref string, in, out any) (*http.Response, error) {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, ref, body, contentType)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, req.URL.Path, err)
		}
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, ref string, out any) error {
	_, err := c.doJSON(ctx, http.MethodGet, ref, nil, out)
	return err
}

// postForLocation sends in and returns the Location header of the accepted answer.
func (c *Client) postForLocation(ctx context.Context, method, ref string, in any) (string, error) {
	resp, err := c.doJSON(ctx, method, ref, in, nil)
	if err != nil {
		return "", err
	}
	return location(resp)
}

func location(resp *http.Response) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("%w: %s %s", ErrMissingLocation, resp.Request.Method, resp.Request.URL.Path)
	}
	return loc, nil
}

// idFromLocation returns the last path segment of a resource URL.
func idFromLocation(loc string) (string, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse location %q: %w", loc, err)
	}
	id := path.Base(strings.TrimSuffix(u.Path, "/"))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("no resource id in location %q", loc)
	}
	return id, nil
}

func newAPIError(req *http.Request, resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		Path:       req.URL.Path,
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string          `json:"message"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		apiErr.Message = payload.Message
		if len(payload.Errors) > 0 && string(payload.Errors) != "null" {
			apiErr.Message += " " + string(payload.Errors)
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// escape quotes a user-supplied path segment such as a feature name.
func escape(segment string) string {
	return url.PathEscape(segment)
}
