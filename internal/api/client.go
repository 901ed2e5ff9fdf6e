// Package api is the typed client for the expense-tracking REST API.
//
// A single Client is configured with the API base URL (normally ending in
// /api/v1) and a session.TokenStore. Every request goes through two
// interceptors: the outbound one attaches "Authorization: Bearer <token>"
// when the store holds a token, the inbound one turns non-2xx responses into
// *Error values and, on 401, clears the stored token before returning an
// error matching ErrUnauthorized. Nothing is retried.
package api

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

	"expensetracker/internal/log"
	"expensetracker/internal/session"
)

const (
	// DefaultBasePath is the path prefix every endpoint lives under.
	DefaultBasePath = "/api/v1"

	contentTypeJSON = "application/json"
	maxErrorBody    = 64 << 10
)

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	tokens    session.TokenStore
	logger    *log.Logger
	userAgent string
}

type Option func(*Client)

// WithHTTPClient uses hc for requests. Its transport is wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New builds a Client for baseURL. A nil tokens store means requests are
// always sent unauthenticated.
func New(baseURL string, tokens session.TokenStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", baseURL)
	}
	if tokens == nil {
		tokens = session.NewMemoryStore("")
	}

	c := &Client{
		baseURL:   u,
		tokens:    tokens,
		userAgent: "expensetracker",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Nop()
	}
	c.logger = c.logger.WithComponent(log.ComponentAPI)

	hc := &http.Client{}
	if c.http != nil {
		copied := *c.http
		hc = &copied
	}
	hc.Transport = &interceptTransport{
		tokens:    c.tokens,
		userAgent: c.userAgent,
		next:      log.Transport(c.logger, hc.Transport),
	}
	c.http = hc

	return c, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Tokens returns the store the client reads its bearer token from.
func (c *Client) Tokens() session.TokenStore {
	return c.tokens
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body, contentTypeJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, method, path, err)
	}
	return nil
}

// send performs the request and applies the inbound interceptor. On success
// the caller owns resp.Body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, accept string) (*http.Response, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, c.intercept(ctx, method, path, resp)
	}
	return resp, nil
}

// intercept is the inbound interceptor for failed responses.
func (c *Client) intercept(ctx context.Context, method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &Error{
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       path,
		Message:    errorMessage(body),
		Body:       body,
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// The stale token must go even if the caller's context is already done.
		if err := c.tokens.ClearToken(context.WithoutCancel(ctx)); err != nil {
			c.logger.ErrorContext(ctx, "Failed to clear auth token after 401",
				log.FieldPath, path, log.FieldError, err)
			return errors.Join(apiErr, fmt.Errorf("clear token: %w", err))
		}
		c.logger.WarnContext(ctx, "Session rejected, auth token cleared",
			log.FieldMethod, method, log.FieldPath, path)
	}

	return apiErr
}
