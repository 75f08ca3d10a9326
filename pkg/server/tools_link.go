// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gns3-labs/gns3-mcp/pkg/logger"
	"github.com/gns3-labs/gns3-mcp/pkg/topology"
)

func registerLinkTools(mcpServer *server.MCPServer, h *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "get_links",
		Description: "List the links of the current project with resolved node names",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.GetLinks)

	mcpServer.AddTool(mcp.Tool{
		Name: "set_connection",
		Description: "Apply a batch of link operations. Each operation either connects two nodes " +
			"(by name plus adapter/port, where the adapter may be a number or a port name like \"eth0\") " +
			"or disconnects a link by id. The whole batch is validated first: if any operation is invalid " +
			"nothing executes. Execution stops at the first failure; completed operations are not rolled back.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"operations": map[string]interface{}{
					"type":        "array",
					"description": "Ordered list of operations",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"action": map[string]interface{}{
								"type":        "string",
								"description": "\"connect\" or \"disconnect\"",
							},
							"node_a":    map[string]interface{}{"type": "string"},
							"adapter_a": map[string]interface{}{"description": "Adapter number or port name"},
							"port_a":    map[string]interface{}{"type": "integer"},
							"node_b":    map[string]interface{}{"type": "string"},
							"adapter_b": map[string]interface{}{"description": "Adapter number or port name"},
							"port_b":    map[string]interface{}{"type": "integer"},
							"link_id": map[string]interface{}{
								"type":        "string",
								"description": "Link to remove (disconnect only)",
							},
						},
						"required": []string{"action"},
					},
				},
			},
			Required: []string{"operations"},
		},
	}, h.SetConnection)
}

// linkView is a link with its endpoints resolved to node names.
type linkView struct {
	LinkID   string `json:"link_id"`
	NodeA    string `json:"node_a"`
	AdapterA int    `json:"adapter_a"`
	PortA    int    `json:"port_a"`
	NodeB    string `json:"node_b"`
	AdapterB int    `json:"adapter_b"`
	PortB    int    `json:"port_b"`
}

// GetLinks lists links with node names instead of bare ids.
func (h *Handler) GetLinks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	nodes, err := h.emulator.ListNodes(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}
	links, err := h.emulator.ListLinks(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}

	snap := topology.BuildSnapshot(nodes, links)
	views := make([]linkView, 0, len(links))
	for _, l := range links {
		if len(l.Nodes) != 2 {
			continue
		}
		v := linkView{
			LinkID:   l.LinkID,
			NodeA:    l.Nodes[0].NodeID,
			AdapterA: l.Nodes[0].AdapterNumber,
			PortA:    l.Nodes[0].PortNumber,
			NodeB:    l.Nodes[1].NodeID,
			AdapterB: l.Nodes[1].AdapterNumber,
			PortB:    l.Nodes[1].PortNumber,
		}
		if n, ok := snap.NodesByID[l.Nodes[0].NodeID]; ok {
			v.NodeA = n.Name
		}
		if n, ok := snap.NodesByID[l.Nodes[1].NodeID]; ok {
			v.NodeB = n.Name
		}
		views = append(views, v)
	}
	return jsonResult(views), nil
}

// SetConnection validates and executes a batch of link operations.
func (h *Handler) SetConnection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Operations []topology.Operation `json:"operations"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	// One snapshot for the whole batch.
	nodes, err := h.emulator.ListNodes(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}
	links, err := h.emulator.ListLinks(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}

	snap := topology.BuildSnapshot(nodes, links)
	plan, err := snap.ValidateBatch(args.Operations)
	if err != nil {
		return errorResult(err), nil
	}

	result := topology.ExecuteBatch(ctx, h.emulator, projectID, plan)
	if result.Failed != nil {
		logger.Warnf("set_connection: %d/%d operations completed before failure at index %d",
			len(result.Completed), len(args.Operations), result.Failed.Index)
	}
	return jsonResult(result), nil
}
