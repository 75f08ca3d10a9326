// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package gns3

import (
	"context"
	"fmt"
	"net/http"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// ListNodes lists the nodes of a project.
func (c *Client) ListNodes(ctx context.Context, projectID string) ([]Node, error) {
	var nodes []Node
	err := c.do(ctx, http.MethodGet, "/projects/"+escapePath(projectID)+"/nodes", nil, &nodes)
	return nodes, err
}

// GetNode reads one node by id.
func (c *Client) GetNode(ctx context.Context, projectID, nodeID string) (Node, error) {
	var n Node
	err := c.do(ctx, http.MethodGet,
		"/projects/"+escapePath(projectID)+"/nodes/"+escapePath(nodeID), nil, &n)
	if IsStatus(err, http.StatusNotFound) {
		return n, mcperr.NewNodeNotFound(fmt.Sprintf("node %q not found", nodeID))
	}
	return n, err
}

// CreateNodeFromTemplate instantiates a template into the project at the
// given canvas position.
func (c *Client) CreateNodeFromTemplate(ctx context.Context, projectID, templateID string, x, y int) (Node, error) {
	var n Node
	payload := map[string]any{"x": x, "y": y}
	err := c.do(ctx, http.MethodPost,
		"/projects/"+escapePath(projectID)+"/templates/"+escapePath(templateID), payload, &n)
	if IsStatus(err, http.StatusNotFound) {
		return n, mcperr.New(mcperr.CodeTemplateNotFound,
			fmt.Sprintf("template %q not found", templateID), nil).
			WithSuggestion("call query_resource(\"templates://\") for the available templates")
	}
	return n, err
}

// UpdateNode updates node properties. The properties map is passed through
// to the controller unchanged; callers enforce run-state preconditions.
func (c *Client) UpdateNode(ctx context.Context, projectID, nodeID string, properties map[string]any) (Node, error) {
	var n Node
	err := c.do(ctx, http.MethodPut,
		"/projects/"+escapePath(projectID)+"/nodes/"+escapePath(nodeID), properties, &n)
	if IsStatus(err, http.StatusNotFound) {
		return n, mcperr.NewNodeNotFound(fmt.Sprintf("node %q not found", nodeID))
	}
	return n, err
}

// DeleteNode removes the node from the project.
func (c *Client) DeleteNode(ctx context.Context, projectID, nodeID string) error {
	err := c.do(ctx, http.MethodDelete,
		"/projects/"+escapePath(projectID)+"/nodes/"+escapePath(nodeID), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return mcperr.NewNodeNotFound(fmt.Sprintf("node %q not found", nodeID))
	}
	return err
}

// Node lifecycle actions accepted by NodeAction.
const (
	NodeActionStart   = "start"
	NodeActionStop    = "stop"
	NodeActionSuspend = "suspend"
	NodeActionReload  = "reload"
)

// NodeAction performs a lifecycle action (start, stop, suspend, reload) on
// the node.
func (c *Client) NodeAction(ctx context.Context, projectID, nodeID, action string) (Node, error) {
	switch action {
	case NodeActionStart, NodeActionStop, NodeActionSuspend, NodeActionReload:
	default:
		return Node{}, mcperr.NewInvalidParameter(fmt.Sprintf("unknown node action %q", action), nil)
	}

	var n Node
	err := c.do(ctx, http.MethodPost,
		"/projects/"+escapePath(projectID)+"/nodes/"+escapePath(nodeID)+"/"+action, nil, &n)
	if IsStatus(err, http.StatusNotFound) {
		return n, mcperr.NewNodeNotFound(fmt.Sprintf("node %q not found", nodeID))
	}
	return n, err
}

// ReadNodeFile reads a file from inside the node's working directory.
func (c *Client) ReadNodeFile(ctx context.Context, projectID, nodeID, path string) (string, error) {
	raw, err := c.doRaw(ctx, http.MethodGet,
		"/projects/"+escapePath(projectID)+"/nodes/"+escapePath(nodeID)+"/files/"+path, nil, "")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WriteNodeFile writes a file inside the node's working directory.
func (c *Client) WriteNodeFile(ctx context.Context, projectID, nodeID, path, content string) error {
	_, err := c.doRaw(ctx, http.MethodPost,
		"/projects/"+escapePath(projectID)+"/nodes/"+escapePath(nodeID)+"/files/"+path,
		[]byte(content), "application/octet-stream")
	return err
}
