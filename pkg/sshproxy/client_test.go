// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package sshproxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

func TestClientGetPaths(t *testing.T) {
	t.Parallel()

	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	ctx := context.Background()

	calls := []struct {
		name string
		call func() (json.RawMessage, error)
		path string
	}{
		{"health", func() (json.RawMessage, error) { return c.Health(ctx) }, "/health"},
		{"registry", func() (json.RawMessage, error) { return c.Registry(ctx) }, "/proxy/registry"},
		{"sessions", func() (json.RawMessage, error) { return c.Sessions(ctx) }, "/ssh/sessions"},
		{"status", func() (json.RawMessage, error) { return c.Status(ctx, "R1") }, "/ssh/status/R1"},
		{"history", func() (json.RawMessage, error) { return c.History(ctx, "R1") }, "/ssh/history/R1"},
		{"buffer", func() (json.RawMessage, error) { return c.Buffer(ctx, "R1") }, "/ssh/buffer/R1"},
	}
	for _, tc := range calls {
		out, err := tc.call()
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.path, gotPath, tc.name)
		assert.JSONEq(t, `{"ok":true}`, string(out), tc.name)
	}
}

func TestClientExecutePostsCommand(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ssh", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"output":"uptime 4d"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	out, err := c.Execute(context.Background(), CommandRequest{
		NodeName: "R1", Command: "show version", TimeoutSeconds: 10,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"uptime 4d"}`, string(out))

	var req map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "command", req["action"])
}

func TestClientUnreachable(t *testing.T) {
	t.Parallel()

	c := NewClient("http://127.0.0.1:1")
	_, err := c.Health(context.Background())
	assert.Equal(t, mcperr.CodeSSHConnectionFailed, mcperr.CodeOf(err))
}

func TestClientErrorBodyExtraction(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"no session for node R9"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err := c.Status(context.Background(), "R9")
	require.Error(t, err)
	assert.Equal(t, mcperr.CodeSSHConnectionFailed, mcperr.CodeOf(err))
	assert.Contains(t, err.Error(), "no session for node R9")
}

func TestRouterFallbackAndPin(t *testing.T) {
	t.Parallel()

	r := NewRouter("http://default:8022")

	assert.Equal(t, "http://default:8022", r.ClientFor("R1").BaseURL())

	r.Assign("R1", "http://lab-proxy:8022")
	assert.Equal(t, "http://lab-proxy:8022", r.ClientFor("R1").BaseURL())
	assert.Equal(t, "http://default:8022", r.ClientFor("R2").BaseURL())

	pins := r.Assignments()
	require.Len(t, pins, 1)
	assert.Equal(t, Assignment{Node: "R1", Proxy: "http://lab-proxy:8022"}, pins[0])

	// Unpinning reverts to the default.
	r.Assign("R1", "")
	assert.Equal(t, "http://default:8022", r.ClientFor("R1").BaseURL())
	assert.Empty(t, r.Assignments())
}

func TestRouterReusesClients(t *testing.T) {
	t.Parallel()

	r := NewRouter("http://default:8022")
	r.Assign("R1", "http://shared:8022")
	r.Assign("R2", "http://shared:8022")
	assert.Same(t, r.ClientFor("R1"), r.ClientFor("R2"))
}
