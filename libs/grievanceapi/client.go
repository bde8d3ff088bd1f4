// Package grievanceapi is a typed client for the Sambodhan grievance backend.
//
// Every response passes through an explicit decode step (see decode.go) so
// callers always receive one normalized shape regardless of whether the
// backend wrapped the payload in a data or chart envelope.
package grievanceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is used when New receives an empty base URL.
	DefaultBaseURL = "http://localhost:8000/api"
	// DefaultTimeout bounds every JSON call made through the shared client.
	DefaultTimeout = 10 * time.Second

	maxErrorBodyBytes = 64 * 1024
)

// Observer is notified once per backend call. route is the templated path
// (for example "/complaints/{id}") so it can be used as a metric label.
type Observer func(method, route string, status int, elapsed time.Duration, err error)

// Client talks to the grievance backend.
type Client struct {
	baseURL   string
	http      *http.Client
	stream    *http.Client
	observe   Observer
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for JSON calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithStreamClient replaces the client used for streamed downloads. It should
// not carry a fixed timeout; downloads are bounded by the request context.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.stream = hc
		}
	}
}

// WithObserver registers a per-call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observe = o
	}
}

// WithUserAgent sets the User-Agent header sent on every call.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: DefaultTimeout},
		stream:    &http.Client{},
		userAgent: "Sambodhan-Web/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type ctxKey int

const (
	tokenKey ctxKey = iota
	requestIDKey
)

// WithToken returns a context whose backend calls carry the bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// WithRequestID returns a context whose backend calls carry X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// Error is a non-2xx backend response.
type Error struct {
	Status int
	Detail string
	Method string
	Route  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("grievance api %s %s: %d: %s", e.Method, e.Route, e.Status, e.Detail)
	}
	return fmt.Sprintf("grievance api %s %s: %d", e.Method, e.Route, e.Status)
}

// StatusOf reports the backend status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether err is a backend 401 or 403.
func IsUnauthorized(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// DetailOf extracts the backend detail message from err, if any.
func DetailOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

type call struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
}

func (c *Client) newRequest(ctx context.Context, in call) (*http.Request, error) {
	target := c.baseURL + in.path
	if len(in.query) > 0 {
		target += "?" + in.query.Encode()
	}

	var body io.Reader
	if in.body != nil {
		encoded, err := json.Marshal(in.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", in.route, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token, ok := ctx.Value(tokenKey).(string); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	return req, nil
}

// raw performs a JSON call and returns the undecoded response body.
func (c *Client) raw(ctx context.Context, in call) (json.RawMessage, error) {
	start := time.Now()
	status := 0
	var err error
	defer func() {
		if c.observe != nil {
			c.observe(in.method, in.route, status, time.Since(start), err)
		}
	}()

	req, err := c.newRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = responseError(resp, in)
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("read %s response: %w", in.route, err)
		return nil, err
	}
	return payload, nil
}

// do performs a JSON call and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, in call, out any) error {
	payload, err := c.raw(ctx, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", in.route, err)
	}
	return nil
}

func responseError(resp *http.Response, in call) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &Error{
		Status: resp.StatusCode,
		Detail: errorDetail(body),
		Method: in.method,
		Route:  in.route,
	}
}

// errorDetail understands {"detail": "..."}, FastAPI validation lists and
// {"message": "..."} bodies.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil && text != "" {
			return text
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
			messages := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					messages = append(messages, item.Msg)
				}
			}
			return strings.Join(messages, "; ")
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Error
}
