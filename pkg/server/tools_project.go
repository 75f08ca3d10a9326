// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

func registerProjectTools(mcpServer *server.MCPServer, h *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "list_projects",
		Description: "List all projects on the GNS3 server with their status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.ListProjects)

	mcpServer.AddTool(mcp.Tool{
		Name:        "open_project",
		Description: "Open a project and make it the current project for all node, link and console tools",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project id (or exact project name) to open",
				},
			},
			Required: []string{"project_id"},
		},
	}, h.OpenProject)

	mcpServer.AddTool(mcp.Tool{
		Name:        "create_project",
		Description: "Create a new project and make it the current project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Name for the new project",
				},
			},
			Required: []string{"name"},
		},
	}, h.CreateProject)

	mcpServer.AddTool(mcp.Tool{
		Name:        "close_project",
		Description: "Close the current project (or a specific one) and drop its console sessions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project id to close; defaults to the current project",
				},
			},
		},
	}, h.CloseProject)
}

// ListProjects lists every project on the controller.
func (h *Handler) ListProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := h.emulator.ListProjects(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"projects":           projects,
		"current_project_id": h.CurrentProjectID(),
	}), nil
}

// OpenProject opens a project by id or exact name and adopts it.
func (h *Handler) OpenProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		ProjectID string `json:"project_id"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	project, err := h.resolveProject(ctx, args.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	opened, err := h.emulator.OpenProject(ctx, project.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}
	h.SetCurrentProjectID(opened.ProjectID)
	logger.Infof("Opened project %s (%s)", opened.Name, opened.ProjectID)
	return jsonResult(opened), nil
}

// resolveProject accepts a project id or an exact project name.
func (h *Handler) resolveProject(ctx context.Context, idOrName string) (gns3.Project, error) {
	project, err := h.emulator.GetProject(ctx, idOrName)
	if err == nil {
		return project, nil
	}

	projects, listErr := h.emulator.ListProjects(ctx)
	if listErr != nil {
		return gns3.Project{}, err
	}
	for _, p := range projects {
		if p.Name == idOrName {
			return p, nil
		}
	}
	return gns3.Project{}, err
}

// CreateProject creates a project and adopts it.
func (h *Handler) CreateProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Name string `json:"name"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	project, err := h.emulator.CreateProject(ctx, args.Name)
	if err != nil {
		return errorResult(err), nil
	}
	h.SetCurrentProjectID(project.ProjectID)
	logger.Infof("Created project %s (%s)", project.Name, project.ProjectID)
	return jsonResult(project), nil
}

// CloseProject closes a project and tears down the console sessions that
// pointed into it.
func (h *Handler) CloseProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		ProjectID string `json:"project_id"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID := args.ProjectID
	if projectID == "" {
		var err error
		projectID, err = h.requireProject(ctx)
		if err != nil {
			return errorResult(err), nil
		}
	}

	closed, err := h.emulator.CloseProject(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}

	if h.CurrentProjectID() == projectID {
		h.SetCurrentProjectID("")
		if err := h.consoles.CloseAll(); err != nil {
			logger.Warnf("Closing console sessions after project close: %v", err)
		}
	}
	return jsonResult(closed), nil
}
