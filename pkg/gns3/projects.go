// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package gns3

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// GetVersion reads the controller version report.
func (c *Client) GetVersion(ctx context.Context) (Version, error) {
	var v Version
	err := c.do(ctx, http.MethodGet, "/version", nil, &v)
	return v, err
}

// ListProjects lists all projects known to the controller.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := c.do(ctx, http.MethodGet, "/projects", nil, &projects)
	return projects, err
}

// GetProject reads one project by id.
func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodGet, "/projects/"+escapePath(projectID), nil, &p)
	if IsStatus(err, http.StatusNotFound) {
		return p, mcperr.NewProjectNotFound(fmt.Sprintf("project %q not found", projectID))
	}
	return p, err
}

// IsStatus reports whether err is a controller API error with the given
// HTTP status.
func IsStatus(err error, status int) bool {
	var e *mcperr.Error
	if !errors.As(err, &e) {
		return false
	}
	got, ok := e.Context["status"].(int)
	return ok && got == status
}

// CreateProject creates a new project with the given name.
func (c *Client) CreateProject(ctx context.Context, name string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodPost, "/projects", map[string]string{"name": name}, &p)
	return p, err
}

// OpenProject opens the project on the controller.
func (c *Client) OpenProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodPost, "/projects/"+escapePath(projectID)+"/open", nil, &p)
	return p, err
}

// CloseProject closes the project on the controller.
func (c *Client) CloseProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodPost, "/projects/"+escapePath(projectID)+"/close", nil, &p)
	return p, err
}

// ListSnapshots lists the snapshots of a project.
func (c *Client) ListSnapshots(ctx context.Context, projectID string) ([]Snapshot, error) {
	var snapshots []Snapshot
	err := c.do(ctx, http.MethodGet, "/projects/"+escapePath(projectID)+"/snapshots", nil, &snapshots)
	return snapshots, err
}
