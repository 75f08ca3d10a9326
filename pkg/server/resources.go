// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerResourceTools(mcpServer *server.MCPServer, h *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name: "query_resource",
		Description: "Read a resource URI, e.g. projects://, projects://{id}/topology, templates://, " +
			"sessions://console, sessions://ssh/{node}/buffer, proxies://",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uri": map[string]interface{}{
					"type":        "string",
					"description": "Resource URI to read",
				},
			},
			Required: []string{"uri"},
		},
	}, h.QueryResource)
}

// QueryResource resolves any supported resource URI as a tool call, for
// agents whose clients do not surface MCP resources.
func (h *Handler) QueryResource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		URI string `json:"uri"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	out, err := h.resources.Resolve(ctx, args.URI)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

// registerResources publishes the fixed catalogue entries and the
// parameterized templates of the URI grammar.
func registerResources(mcpServer *server.MCPServer, h *Handler) {
	statics := []mcp.Resource{
		{URI: "projects://", Name: "Projects", Description: "All projects on the GNS3 server", MIMEType: "application/json"},
		{URI: "templates://", Name: "Templates", Description: "Node templates available for create_node", MIMEType: "application/json"},
		{URI: "sessions://console", Name: "Console sessions", Description: "Live console session status", MIMEType: "application/json"},
		{URI: "sessions://ssh", Name: "SSH sessions", Description: "Live SSH sessions on the proxy sidecar", MIMEType: "application/json"},
		{URI: "proxies://", Name: "SSH proxies", Description: "Discovered SSH proxy registry and node pins", MIMEType: "application/json"},
	}
	for _, res := range statics {
		mcpServer.AddResource(res, h.readResource)
	}

	templates := []struct {
		uri  string
		name string
	}{
		{"projects://{project_id}", "Project detail"},
		{"projects://{project_id}/nodes/", "Project nodes"},
		{"projects://{project_id}/nodes/{node_id}", "Node detail"},
		{"projects://{project_id}/nodes/{node_id}/template", "Node template usage"},
		{"projects://{project_id}/links/", "Project links"},
		{"projects://{project_id}/drawings/", "Project drawings"},
		{"projects://{project_id}/snapshots/", "Project snapshots"},
		{"projects://{project_id}/readme", "Project README"},
		{"projects://{project_id}/topology", "Topology report"},
		{"templates://{template_id}", "Template detail"},
		{"sessions://console/{node_name}", "Console session status"},
		{"sessions://ssh/{node_name}", "SSH session status"},
		{"sessions://ssh/{node_name}/history", "SSH command history"},
		{"sessions://ssh/{node_name}/buffer", "SSH output buffer"},
		{"proxies://{proxy_id}", "SSH proxy detail"},
	}
	for _, tpl := range templates {
		mcpServer.AddResourceTemplate(
			mcp.NewResourceTemplate(tpl.uri, tpl.name, mcp.WithTemplateMIMEType("application/json")),
			h.readResourceTemplate,
		)
	}
}

func (h *Handler) readResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return h.resolveToContents(ctx, request.Params.URI)
}

func (h *Handler) readResourceTemplate(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return h.resolveToContents(ctx, request.Params.URI)
}

func (h *Handler) resolveToContents(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	out, err := h.resources.Resolve(ctx, uri)
	if err != nil {
		// Resource reads surface the same envelope tool calls do.
		out = mcperrEnvelopeJSON(err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     out,
		},
	}, nil
}
