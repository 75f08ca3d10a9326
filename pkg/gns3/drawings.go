// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package gns3

import (
	"context"
	"fmt"
	"net/http"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// ListDrawings lists the drawings of a project.
func (c *Client) ListDrawings(ctx context.Context, projectID string) ([]Drawing, error) {
	var drawings []Drawing
	err := c.do(ctx, http.MethodGet, "/projects/"+escapePath(projectID)+"/drawings", nil, &drawings)
	return drawings, err
}

// CreateDrawing adds an SVG drawing to the project canvas.
func (c *Client) CreateDrawing(ctx context.Context, projectID string, drawing Drawing) (Drawing, error) {
	var d Drawing
	err := c.do(ctx, http.MethodPost, "/projects/"+escapePath(projectID)+"/drawings", drawing, &d)
	return d, err
}

// UpdateDrawing applies a partial update to an existing drawing. Only the
// given properties change; sending a full Drawing would blank whatever the
// caller omitted.
func (c *Client) UpdateDrawing(ctx context.Context, projectID, drawingID string, properties map[string]any) (Drawing, error) {
	var d Drawing
	err := c.do(ctx, http.MethodPut,
		"/projects/"+escapePath(projectID)+"/drawings/"+escapePath(drawingID), properties, &d)
	if IsStatus(err, http.StatusNotFound) {
		return d, mcperr.New(mcperr.CodeDrawingNotFound,
			fmt.Sprintf("drawing %q not found", drawingID), nil)
	}
	return d, err
}

// DeleteDrawing removes a drawing from the project.
func (c *Client) DeleteDrawing(ctx context.Context, projectID, drawingID string) error {
	err := c.do(ctx, http.MethodDelete,
		"/projects/"+escapePath(projectID)+"/drawings/"+escapePath(drawingID), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return mcperr.New(mcperr.CodeDrawingNotFound,
			fmt.Sprintf("drawing %q not found", drawingID), nil)
	}
	return err
}

// ReadProjectFile reads a file from the project directory (README and
// friends).
func (c *Client) ReadProjectFile(ctx context.Context, projectID, path string) (string, error) {
	raw, err := c.doRaw(ctx, http.MethodGet,
		"/projects/"+escapePath(projectID)+"/files/"+path, nil, "")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WriteProjectFile writes a file in the project directory.
func (c *Client) WriteProjectFile(ctx context.Context, projectID, path, content string) error {
	_, err := c.doRaw(ctx, http.MethodPost,
		"/projects/"+escapePath(projectID)+"/files/"+path,
		[]byte(content), "application/octet-stream")
	return err
}

// ReadmePath is where project READMEs live in the project directory.
const ReadmePath = "README.txt"
