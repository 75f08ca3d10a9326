// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the mediator to agents over MCP: tool handlers,
// resource catalogue, prompts and the stdio/HTTP transports.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gns3-labs/gns3-mcp/pkg/console"
	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/resources"
	"github.com/gns3-labs/gns3-mcp/pkg/sshproxy"
)

// Emulator is the slice of the GNS3 client the tool handlers use.
type Emulator interface {
	resources.Catalogue

	GetVersion(ctx context.Context) (gns3.Version, error)
	CreateProject(ctx context.Context, name string) (gns3.Project, error)
	OpenProject(ctx context.Context, projectID string) (gns3.Project, error)
	CloseProject(ctx context.Context, projectID string) (gns3.Project, error)

	CreateNodeFromTemplate(ctx context.Context, projectID, templateID string, x, y int) (gns3.Node, error)
	UpdateNode(ctx context.Context, projectID, nodeID string, properties map[string]any) (gns3.Node, error)
	DeleteNode(ctx context.Context, projectID, nodeID string) error
	NodeAction(ctx context.Context, projectID, nodeID, action string) (gns3.Node, error)
	ReadNodeFile(ctx context.Context, projectID, nodeID, path string) (string, error)
	WriteNodeFile(ctx context.Context, projectID, nodeID, path, content string) error

	CreateLink(ctx context.Context, projectID string, endpoints []gns3.LinkEndpoint, timeout time.Duration) (gns3.Link, error)
	DeleteLink(ctx context.Context, projectID, linkID string, timeout time.Duration) error

	CreateDrawing(ctx context.Context, projectID string, drawing gns3.Drawing) (gns3.Drawing, error)
	UpdateDrawing(ctx context.Context, projectID, drawingID string, properties map[string]any) (gns3.Drawing, error)
	DeleteDrawing(ctx context.Context, projectID, drawingID string) error
	WriteProjectFile(ctx context.Context, projectID, path, content string) error
}

const (
	defaultConsolePoll = 500 * time.Millisecond

	// restart waits for a confirmed stop before starting again.
	defaultStatusPoll         = 5 * time.Second
	defaultStatusPollAttempts = 3
)

// Handler owns the tool implementations and the process-wide app state: the
// current project id and the node-to-SSH-proxy routing.
type Handler struct {
	emulator  Emulator
	consoles  *console.Manager
	ssh       *sshproxy.Router
	resources *resources.Router

	// consoleHost is the fallback for nodes whose console host is a
	// wildcard address; usually the controller host.
	consoleHost string

	consolePoll        time.Duration
	statusPoll         time.Duration
	statusPollAttempts int

	mu               sync.Mutex
	currentProjectID string
}

// SetConsoleFallbackHost sets the host used when a node reports a wildcard
// console address.
func (h *Handler) SetConsoleFallbackHost(host string) {
	h.consoleHost = host
}

// NewHandler wires a handler to its backing services.
func NewHandler(emulator Emulator, consoles *console.Manager, ssh *sshproxy.Router, res *resources.Router) *Handler {
	return &Handler{
		emulator:           emulator,
		consoles:           consoles,
		ssh:                ssh,
		resources:          res,
		consolePoll:        defaultConsolePoll,
		statusPoll:         defaultStatusPoll,
		statusPollAttempts: defaultStatusPollAttempts,
	}
}

// CurrentProjectID returns the project tool calls operate on, or "".
func (h *Handler) CurrentProjectID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentProjectID
}

// SetCurrentProjectID records the project tool calls operate on.
func (h *Handler) SetCurrentProjectID(id string) {
	h.mu.Lock()
	h.currentProjectID = id
	h.mu.Unlock()
}

// requireProject returns the current project id, auto-connecting to a singly
// opened project when none is set.
func (h *Handler) requireProject(ctx context.Context) (string, error) {
	if id := h.CurrentProjectID(); id != "" {
		return id, nil
	}

	projects, err := h.emulator.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	var open []gns3.Project
	for _, p := range projects {
		if p.Status == "opened" {
			open = append(open, p)
		}
	}
	if len(open) == 1 {
		h.SetCurrentProjectID(open[0].ProjectID)
		return open[0].ProjectID, nil
	}

	return "", mcperr.NewProjectNotFound("no project is currently open").
		WithSuggestion("call open_project(project_id) first; list_projects() shows what exists").
		WithContext("open_projects", len(open))
}

// findNodeByName resolves a node by its exact name within the project.
func (h *Handler) findNodeByName(ctx context.Context, projectID, name string) (gns3.Node, error) {
	nodes, err := h.emulator.ListNodes(ctx, projectID)
	if err != nil {
		return gns3.Node{}, err
	}
	for _, n := range nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return gns3.Node{}, mcperr.NewNodeNotFound(
		fmt.Sprintf("node %q not found in the current project", name))
}

// jsonResult wraps a success payload as pretty-printed JSON text.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(mcperr.NewInternal("cannot encode tool response", err))
	}
	return mcp.NewToolResultText(string(data))
}

// rawResult passes sidecar JSON through unchanged.
func rawResult(raw json.RawMessage) *mcp.CallToolResult {
	return mcp.NewToolResultText(string(raw))
}

// errorResult converts any error into the canonical envelope. Handlers return
// it as tool output rather than a protocol error so agents always see the
// structured record.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(mcperr.NewEnvelope(err).JSON())
}

// mcperrEnvelopeJSON is the envelope as a JSON string, for surfaces that
// return text instead of a tool result.
func mcperrEnvelopeJSON(err error) string {
	return mcperr.NewEnvelope(err).JSON()
}

// bindError reports malformed tool arguments.
func bindError(err error) *mcp.CallToolResult {
	return errorResult(mcperr.NewInvalidParameter("cannot parse tool arguments", err))
}
