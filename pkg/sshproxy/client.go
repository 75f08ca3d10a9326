// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package sshproxy talks to the SSH-proxy sidecar, a separate HTTP service
// that executes SSH sessions on behalf of the agent. The mediator never opens
// SSH connections itself; it forwards requests and relays the sidecar's JSON
// responses unchanged.
package sshproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// DefaultPort is where the sidecar listens unless configured otherwise.
const DefaultPort = 8022

const requestTimeout = 60 * time.Second

// Client is an HTTP client for one sidecar instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the sidecar at baseURL, e.g.
// "http://192.168.1.20:8022".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// BaseURL returns the sidecar address this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// SessionConfig opens or reconfigures an SSH session for a node.
type SessionConfig struct {
	NodeName string `json:"node_name"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	Device   string `json:"device_type,omitempty"`
}

// CommandRequest runs a command on an established session.
type CommandRequest struct {
	NodeName       string  `json:"node_name"`
	Command        string  `json:"command"`
	TimeoutSeconds float64 `json:"timeout,omitempty"`
}

// Health reports the sidecar's own status.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/health")
}

// Registry lists the lab proxies the sidecar has discovered.
func (c *Client) Registry(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/proxy/registry")
}

// Sessions lists all live SSH sessions.
func (c *Client) Sessions(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/ssh/sessions")
}

// Status reports the session state for one node.
func (c *Client) Status(ctx context.Context, node string) (json.RawMessage, error) {
	return c.get(ctx, "/ssh/status/"+node)
}

// History returns the command history for one node's session.
func (c *Client) History(ctx context.Context, node string) (json.RawMessage, error) {
	return c.get(ctx, "/ssh/history/"+node)
}

// Buffer returns the accumulated output buffer for one node's session.
func (c *Client) Buffer(ctx context.Context, node string) (json.RawMessage, error) {
	return c.get(ctx, "/ssh/buffer/"+node)
}

// Configure establishes an SSH session per the config.
func (c *Client) Configure(ctx context.Context, cfg SessionConfig) (json.RawMessage, error) {
	return c.post(ctx, "/ssh", map[string]any{"action": "configure", "config": cfg})
}

// Execute runs a command over an established session.
func (c *Client) Execute(ctx context.Context, req CommandRequest) (json.RawMessage, error) {
	return c.post(ctx, "/ssh", map[string]any{"action": "command", "request": req})
}

// TFTP forwards a TFTP transfer request to the sidecar.
func (c *Client) TFTP(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.post(ctx, "/tftp", payload)
}

// HTTPClient forwards an in-lab HTTP request to the sidecar.
func (c *Client) HTTPClient(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.post(ctx, "/http-client", payload)
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.roundTrip(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, mcperr.NewInternal("cannot encode SSH proxy request", err)
	}
	return c.roundTrip(ctx, http.MethodPost, path, body)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, mcperr.NewInternal("cannot build SSH proxy request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mcperr.New(mcperr.CodeSSHConnectionFailed,
			fmt.Sprintf("SSH proxy at %s is unreachable", c.baseURL), err).
			WithSuggestion("check that the SSH proxy sidecar is running").
			WithContext("proxy", c.baseURL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mcperr.New(mcperr.CodeSSHConnectionFailed,
			"reading SSH proxy response failed", err).
			WithContext("proxy", c.baseURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = gjson.GetBytes(data, "message").String()
		}
		if msg == "" {
			msg = string(data)
		}
		return nil, mcperr.New(mcperr.CodeSSHConnectionFailed,
			fmt.Sprintf("SSH proxy returned %d: %s", resp.StatusCode, msg), nil).
			WithContext("proxy", c.baseURL).
			WithContext("status", resp.StatusCode).
			WithContext("path", path)
	}
	if len(data) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(data), nil
}
