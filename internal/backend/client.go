package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var DefaultHTTPClient = &http.Client{
	Timeout: time.Second * 10,
}

const (
	DefaultVerifyPath    = "/verify"
	DefaultSubmitPath    = "/post"
	DefaultCalculatePath = "/calculate"
)

// Paths overrides endpoint locations relative to the base URL.
type Paths struct {
	Verify    string
	Submit    string
	Calculate string
}

// Observer is told about every completed round trip.
type Observer func(path string, elapsed time.Duration, err error)

// Response is the common JSON envelope returned by /verify and /post.
type Response struct {
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Token      string `json:"token,omitempty"`
	StatusCode int    `json:"-"`
}

type Client struct {
	baseURL        string
	client         *http.Client
	defaultHeaders map[string][]string
	paths          Paths
	logger         *zap.Logger
	observer       Observer
}

type Option func(c *Client)

var WithHTTPClient = func(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

var WithDefaultHeaders = func(headers map[string][]string) Option {
	return func(c *Client) {
		c.defaultHeaders = headers
	}
}

var WithLogger = func(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

var WithPaths = func(p Paths) Option {
	return func(c *Client) {
		if p.Verify != "" {
			c.paths.Verify = p.Verify
		}
		if p.Submit != "" {
			c.paths.Submit = p.Submit
		}
		if p.Calculate != "" {
			c.paths.Calculate = p.Calculate
		}
	}
}

var WithObserver = func(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		paths: Paths{
			Verify:    DefaultVerifyPath,
			Submit:    DefaultSubmitPath,
			Calculate: DefaultCalculatePath,
		},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.client == nil {
		client.client = DefaultHTTPClient
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}

	return client
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// postJSON sends body to path and returns the status code and raw response body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (int, []byte, error) {
	start := time.Now()
	status, raw, err := c.roundTrip(ctx, path, body)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer(path, elapsed, err)
	}
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("path", path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return 0, nil, err
	}

	c.logger.Debug("backend request",
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed))
	return status, raw, nil
}

func (c *Client) roundTrip(ctx context.Context, path string, body interface{}) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	for key, values := range c.defaultHeaders {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	res, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}

	return res.StatusCode, raw, nil
}

func decodeResponse(status int, raw []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w [status: %d]: %v", ErrMalformedResponse, status, err)
	}
	r.StatusCode = status
	return &r, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
