// Package controlplane is an HTTP client for the worker control plane API.
package controlplane

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
)

const (
	// DefaultBaseURL is the public control plane API root.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 4 << 20
)

// Client talks to the control plane. It never retries; every non-success
// response surfaces as a *RemoteError.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	userAgent  string
	log        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithTimeout bounds each request, including reading the response body.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Transport: c.httpClient.Transport, Timeout: d}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a client rooted at baseURL. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse control plane URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse control plane URL: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "edgepub",
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type request struct {
	op          string
	method      string
	segments    []string
	body        io.Reader
	contentType string
}

func jsonRequest(op, method string, payload any, segments ...string) (request, error) {
	req := request{op: op, method: method, segments: segments}
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("%s: marshal request: %w", op, err)
	}
	req.body = bytes.NewReader(data)
	req.contentType = "application/json"
	return req, nil
}

// do sends req and decodes the envelope result into out. out may be nil when
// the caller only needs success or failure.
func (c *Client) do(ctx context.Context, req request, out any) error {
	for _, seg := range req.segments {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("%s: empty path segment", req.op)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL.JoinPath(req.segments...).String(), req.body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", req.op, err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", req.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", req.op, err)
	}
	c.log.Debug("Control plane request finished.",
		"op", req.op, "method", req.method, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Op: req.op, Status: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &MalformedResponseError{Op: req.op, Status: resp.StatusCode, Body: string(body), Err: err}
	}
	if !env.Success {
		return &RemoteError{Op: req.op, Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if len(env.Result) == 0 || bytes.Equal(bytes.TrimSpace(env.Result), []byte("null")) {
		return &MalformedResponseError{Op: req.op, Status: resp.StatusCode, Body: string(body), Err: errMissingResult}
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &MalformedResponseError{Op: req.op, Status: resp.StatusCode, Body: string(body), Err: err}
	}
	return nil
}

var errMissingResult = errors.New("missing result")
