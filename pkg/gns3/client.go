// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package gns3

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

const (
	// DefaultTimeout is the per-call timeout applied when the caller's
	// context carries no deadline of its own.
	DefaultTimeout = 30 * time.Second

	// DefaultLinkTimeout is the default timeout for link create/delete,
	// which are occasionally slow on loaded emulators. Callers may override
	// it per batch.
	DefaultLinkTimeout = 30 * time.Second

	apiPrefix = "/v3"
)

// Config holds the connection parameters for the controller.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	UseHTTPS  bool
	VerifySSL bool
}

// BaseURL renders the controller base URL for the configuration.
func (c Config) BaseURL() string {
	scheme := "http"
	if c.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Client is the authenticated HTTP client for the GNS3 controller.
//
// A Client performs no automatic retries inside a single call; callers (tool
// handlers or the background monitor) decide whether and when to retry.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	// mu guards token and the observable connection state below.
	mu        sync.Mutex
	token     string
	connected bool
	connErr   string

	// authMu serializes token refreshes so only one credential exchange is
	// in flight at a time.
	authMu sync.Mutex
}

// NewClient creates a client for the controller described by cfg.
func NewClient(cfg Config) *Client {
	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	if cfg.UseHTTPS && !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- lab servers commonly run self-signed certs; opt-in via --verify-ssl=false
	}

	return &Client{
		baseURL:  cfg.BaseURL(),
		username: cfg.Username,
		password: cfg.Password,
		// No http.Client timeout: per-call deadlines come from the request
		// context so link operations can exceed the 30 s default.
		httpClient: &http.Client{Transport: transport},
	}
}

// BaseURL returns the controller base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the current bearer token, or "" before authentication.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// IsConnected reports whether the last controller call succeeded.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ConnectionError returns the text of the last failure, or "" when connected.
func (c *Client) ConnectionError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connErr
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	c.connected = true
	c.connErr = ""
	c.mu.Unlock()
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	c.connected = false
	c.connErr = err.Error()
	c.mu.Unlock()
}

// AuthOptions controls the retry behaviour of Authenticate.
type AuthOptions struct {
	// Retry enables retrying failed credential exchanges.
	Retry bool
	// RetryInterval is the fixed delay between attempts.
	RetryInterval time.Duration
	// MaxRetries bounds the number of attempts; 0 with Retry means retry
	// until the context is cancelled.
	MaxRetries uint
}

// Authenticate performs the credential exchange and stores the bearer token.
// Concurrent callers are serialized: only one refresh is in flight at a time,
// and a caller that waited on another refresh re-uses its outcome via the
// stored token.
func (c *Client) Authenticate(ctx context.Context, opts AuthOptions) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if !opts.Retry {
		return c.authenticateOnce(ctx)
	}

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	operation := func() (struct{}, error) {
		return struct{}{}, c.authenticateOnce(ctx)
	}
	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Debugf("Authentication failed, retrying in %v: %v", d, err)
		}),
	}
	if opts.MaxRetries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(opts.MaxRetries))
	}

	_, err := backoff.Retry(ctx, operation, retryOpts...)
	return err
}

func (c *Client) authenticateOnce(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return mcperr.NewInternal("failed to encode credentials", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+apiPrefix+"/access/users/authenticate", bytes.NewReader(body))
	if err != nil {
		return mcperr.NewInternal("failed to build authentication request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		authErr := mcperr.NewUnreachable("cannot reach GNS3 server", err)
		c.recordFailure(authErr)
		return authErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		readErr := mcperr.NewUnreachable("failed to read authentication response", err)
		c.recordFailure(readErr)
		return readErr
	}

	if resp.StatusCode == http.StatusUnauthorized {
		credErr := mcperr.NewInvalidCredentials("GNS3 server rejected the credentials")
		c.recordFailure(credErr)
		return credErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := mcperr.New(mcperr.CodeAuthFailed,
			fmt.Sprintf("authentication failed with status %d: %s", resp.StatusCode, apiMessage(raw)), nil)
		c.recordFailure(apiErr)
		return apiErr
	}

	token := gjson.GetBytes(raw, "access_token").String()
	if token == "" {
		tokenErr := mcperr.New(mcperr.CodeAuthFailed, "authentication response carried no access_token", nil)
		c.recordFailure(tokenErr)
		return tokenErr
	}

	c.mu.Lock()
	c.token = token
	c.connected = true
	c.connErr = ""
	c.mu.Unlock()

	logger.Debugf("Authenticated against %s", c.baseURL)
	return nil
}

// apiMessage extracts the human message from a controller error body: the
// JSON "message" field when present, otherwise the raw body.
func apiMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "message").String(); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(body))
}

// do issues one controller request. Out, when non-nil, receives the decoded
// 2xx JSON body; 204 and empty bodies leave it untouched rather than failing
// to parse.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	var reqBody io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return mcperr.NewInternal("failed to encode request body", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reqBody)
	if err != nil {
		return mcperr.NewInternal("failed to build request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			timeoutErr := mcperr.NewTimeout(fmt.Sprintf("GNS3 request %s %s timed out", method, path), err)
			c.recordFailure(timeoutErr)
			return timeoutErr
		}
		netErr := mcperr.NewUnreachable("cannot reach GNS3 server", err)
		c.recordFailure(netErr)
		return netErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		readErr := mcperr.NewUnreachable("failed to read GNS3 response", err)
		c.recordFailure(readErr)
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := mcperr.NewAPIError(
			fmt.Sprintf("GNS3 API error %d on %s %s: %s", resp.StatusCode, method, path, apiMessage(raw)), nil).
			WithContext("status", resp.StatusCode).
			WithContext("path", path)
		if resp.StatusCode == http.StatusUnauthorized {
			apiErr = mcperr.New(mcperr.CodeTokenExpired,
				"GNS3 server rejected the bearer token", nil).
				WithSuggestion("the background authentication loop will refresh the token; retry shortly").
				WithContext("path", path)
		}
		c.recordFailure(apiErr)
		return apiErr
	}

	c.recordSuccess()

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return mcperr.NewAPIError(fmt.Sprintf("failed to decode GNS3 response for %s %s", method, path), err)
	}
	return nil
}

// doRaw issues a request and returns the raw body bytes (symbols, files).
func (c *Client) doRaw(ctx context.Context, method, path string, in []byte, contentType string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	var reqBody io.Reader
	if in != nil {
		reqBody = bytes.NewReader(in)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reqBody)
	if err != nil {
		return nil, mcperr.NewInternal("failed to build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		netErr := mcperr.NewUnreachable("cannot reach GNS3 server", err)
		c.recordFailure(netErr)
		return nil, netErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		readErr := mcperr.NewUnreachable("failed to read GNS3 response", err)
		c.recordFailure(readErr)
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := mcperr.NewAPIError(
			fmt.Sprintf("GNS3 API error %d on %s %s: %s", resp.StatusCode, method, path, apiMessage(raw)), nil).
			WithContext("status", resp.StatusCode).
			WithContext("path", path)
		c.recordFailure(apiErr)
		return nil, apiErr
	}

	c.recordSuccess()
	return raw, nil
}

func escapePath(segment string) string {
	return url.PathEscape(segment)
}
