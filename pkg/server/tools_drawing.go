// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
)

func registerDrawingTools(mcpServer *server.MCPServer, h *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "list_drawings",
		Description: "List the drawings (canvas annotations) of the current project",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.ListDrawings)

	mcpServer.AddTool(mcp.Tool{
		Name:        "create_drawing",
		Description: "Add an SVG drawing to the current project's canvas",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"svg": map[string]interface{}{
					"type":        "string",
					"description": "SVG markup for the drawing",
				},
				"x": map[string]interface{}{"type": "integer"},
				"y": map[string]interface{}{"type": "integer"},
				"z": map[string]interface{}{"type": "integer"},
				"rotation": map[string]interface{}{
					"type":        "integer",
					"description": "Rotation in degrees",
				},
			},
			Required: []string{"svg"},
		},
	}, h.CreateDrawing)

	mcpServer.AddTool(mcp.Tool{
		Name:        "update_drawing",
		Description: "Update an existing drawing's SVG or position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"drawing_id": map[string]interface{}{"type": "string"},
				"svg":        map[string]interface{}{"type": "string"},
				"x":          map[string]interface{}{"type": "integer"},
				"y":          map[string]interface{}{"type": "integer"},
				"z":          map[string]interface{}{"type": "integer"},
				"rotation":   map[string]interface{}{"type": "integer"},
			},
			Required: []string{"drawing_id"},
		},
	}, h.UpdateDrawing)

	mcpServer.AddTool(mcp.Tool{
		Name:        "delete_drawing",
		Description: "Remove a drawing from the current project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"drawing_id": map[string]interface{}{"type": "string"},
			},
			Required: []string{"drawing_id"},
		},
	}, h.DeleteDrawing)
}

// ListDrawings lists the project's canvas annotations.
func (h *Handler) ListDrawings(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	drawings, err := h.emulator.ListDrawings(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(drawings), nil
}

// CreateDrawing adds an SVG annotation to the canvas.
func (h *Handler) CreateDrawing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		SVG      string `json:"svg"`
		X        int    `json:"x"`
		Y        int    `json:"y"`
		Z        int    `json:"z"`
		Rotation int    `json:"rotation"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	drawing, err := h.emulator.CreateDrawing(ctx, projectID, gns3.Drawing{
		SVG: args.SVG, X: args.X, Y: args.Y, Z: args.Z, Rotation: args.Rotation,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(drawing), nil
}

// UpdateDrawing changes a drawing's SVG or position. Pointers distinguish
// "not provided" from zero values so a position-only update cannot blank the
// SVG or snap the drawing to the origin.
func (h *Handler) UpdateDrawing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		DrawingID string  `json:"drawing_id"`
		SVG       *string `json:"svg"`
		X         *int    `json:"x"`
		Y         *int    `json:"y"`
		Z         *int    `json:"z"`
		Rotation  *int    `json:"rotation"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	properties := map[string]any{}
	if args.SVG != nil {
		properties["svg"] = *args.SVG
	}
	if args.X != nil {
		properties["x"] = *args.X
	}
	if args.Y != nil {
		properties["y"] = *args.Y
	}
	if args.Z != nil {
		properties["z"] = *args.Z
	}
	if args.Rotation != nil {
		properties["rotation"] = *args.Rotation
	}
	if len(properties) == 0 {
		return errorResult(mcperr.NewInvalidParameter(
			"update_drawing needs at least one of svg, x, y, z, rotation", nil)), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	drawing, err := h.emulator.UpdateDrawing(ctx, projectID, args.DrawingID, properties)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(drawing), nil
}

// DeleteDrawing removes a drawing.
func (h *Handler) DeleteDrawing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		DrawingID string `json:"drawing_id"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.emulator.DeleteDrawing(ctx, projectID, args.DrawingID); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]string{"deleted": args.DrawingID}), nil
}
