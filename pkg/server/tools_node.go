// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

func registerNodeTools(mcpServer *server.MCPServer, h *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "list_nodes",
		Description: "List the nodes of the current project with status and console ports",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.ListNodes)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_node_details",
		Description: "Get full details for one node, including its ports",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name (case-sensitive)",
				},
			},
			Required: []string{"node"},
		},
	}, h.GetNodeDetails)

	mcpServer.AddTool(mcp.Tool{
		Name:        "create_node",
		Description: "Create a node from a template at a canvas position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"template": map[string]interface{}{
					"type":        "string",
					"description": "Template name or template id",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Optional name for the new node",
				},
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "Canvas X position",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Canvas Y position",
				},
			},
			Required: []string{"template"},
		},
	}, h.CreateNode)

	mcpServer.AddTool(mcp.Tool{
		Name: "set_node",
		Description: "Update node properties and/or perform a lifecycle action. " +
			"Renaming requires the node to be stopped; ram/cpus/adapters apply to qemu (adapters also to docker). " +
			"Actions: start, stop, suspend, reload, restart.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name (case-sensitive)",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "New name for the node (requires stopped)",
				},
				"x": map[string]interface{}{"type": "integer"},
				"y": map[string]interface{}{"type": "integer"},
				"ram": map[string]interface{}{
					"type":        "integer",
					"description": "RAM in MB (qemu nodes only)",
				},
				"cpus": map[string]interface{}{
					"type":        "integer",
					"description": "Virtual CPUs (qemu nodes only)",
				},
				"adapters": map[string]interface{}{
					"type":        "integer",
					"description": "Adapter count (qemu and docker nodes)",
				},
				"action": map[string]interface{}{
					"type":        "string",
					"description": "Lifecycle action: start, stop, suspend, reload or restart",
				},
			},
			Required: []string{"node"},
		},
	}, h.SetNode)

	mcpServer.AddTool(mcp.Tool{
		Name:        "delete_node",
		Description: "Delete a node from the current project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name (case-sensitive)",
				},
			},
			Required: []string{"node"},
		},
	}, h.DeleteNode)

	mcpServer.AddTool(mcp.Tool{
		Name: "configure_node_network",
		Description: "Write a network interfaces configuration into a docker node " +
			"(static address or DHCP). Takes effect on the next node start.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name (case-sensitive)",
				},
				"interface": map[string]interface{}{
					"type":        "integer",
					"description": "Interface index, e.g. 0 for eth0",
				},
				"ip_address": map[string]interface{}{
					"type":        "string",
					"description": "Address with prefix, e.g. 192.168.1.10/24",
				},
				"gateway": map[string]interface{}{
					"type":        "string",
					"description": "Optional default gateway",
				},
				"dhcp": map[string]interface{}{
					"type":        "boolean",
					"description": "Use DHCP instead of a static address",
				},
			},
			Required: []string{"node"},
		},
	}, h.ConfigureNodeNetwork)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_node_file",
		Description: "Read a file from a node's working directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{"type": "string"},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path relative to the node's working directory",
				},
			},
			Required: []string{"node", "path"},
		},
	}, h.GetNodeFile)

	mcpServer.AddTool(mcp.Tool{
		Name:        "write_node_file",
		Description: "Write a file into a node's working directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node":    map[string]interface{}{"type": "string"},
				"path":    map[string]interface{}{"type": "string"},
				"content": map[string]interface{}{"type": "string"},
			},
			Required: []string{"node", "path", "content"},
		},
	}, h.WriteNodeFile)
}

// ListNodes lists the current project's nodes.
func (h *Handler) ListNodes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	nodes, err := h.emulator.ListNodes(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}

	type summary struct {
		NodeID      string `json:"node_id"`
		Name        string `json:"name"`
		NodeType    string `json:"node_type"`
		Status      string `json:"status"`
		Console     int    `json:"console"`
		ConsoleType string `json:"console_type,omitempty"`
	}
	out := make([]summary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, summary{
			NodeID: n.NodeID, Name: n.Name, NodeType: n.NodeType,
			Status: n.Status, Console: n.Console, ConsoleType: n.ConsoleType,
		})
	}
	return jsonResult(out), nil
}

// GetNodeDetails returns the full node record.
func (h *Handler) GetNodeDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	node, err := h.findNodeByName(ctx, projectID, args.Node)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(node), nil
}

// CreateNode instantiates a template, optionally renaming the new node.
func (h *Handler) CreateNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Template string `json:"template"`
		Name     string `json:"name"`
		X        int    `json:"x"`
		Y        int    `json:"y"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	templateID, err := h.resolveTemplate(ctx, args.Template)
	if err != nil {
		return errorResult(err), nil
	}

	node, err := h.emulator.CreateNodeFromTemplate(ctx, projectID, templateID, args.X, args.Y)
	if err != nil {
		return errorResult(err), nil
	}
	if args.Name != "" && args.Name != node.Name {
		node, err = h.emulator.UpdateNode(ctx, projectID, node.NodeID, map[string]any{"name": args.Name})
		if err != nil {
			return errorResult(err), nil
		}
	}
	logger.Infof("Created node %s (%s) from template %s", node.Name, node.NodeID, args.Template)
	return jsonResult(node), nil
}

// resolveTemplate accepts a template id or an exact template name.
func (h *Handler) resolveTemplate(ctx context.Context, idOrName string) (string, error) {
	templates, err := h.emulator.ListTemplates(ctx)
	if err != nil {
		return "", err
	}
	for _, tpl := range templates {
		if tpl.TemplateID == idOrName || tpl.Name == idOrName {
			return tpl.TemplateID, nil
		}
	}
	return "", mcperr.New(mcperr.CodeTemplateNotFound,
		fmt.Sprintf("template %q not found", idOrName), nil).
		WithSuggestion("call query_resource(\"templates://\") for the available templates")
}

// setNodeArgs carries the mutable node properties. Pointers distinguish
// "not provided" from zero values.
type setNodeArgs struct {
	Node     string `json:"node"`
	Name     *string `json:"name"`
	X        *int    `json:"x"`
	Y        *int    `json:"y"`
	RAM      *int    `json:"ram"`
	CPUs     *int    `json:"cpus"`
	Adapters *int    `json:"adapters"`
	Action   string  `json:"action"`
}

// SetNode updates node properties and/or runs a lifecycle action.
func (h *Handler) SetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args setNodeArgs
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	node, err := h.findNodeByName(ctx, projectID, args.Node)
	if err != nil {
		return errorResult(err), nil
	}

	properties, err := nodeProperties(node, args)
	if err != nil {
		return errorResult(err), nil
	}
	if len(properties) > 0 {
		node, err = h.emulator.UpdateNode(ctx, projectID, node.NodeID, properties)
		if err != nil {
			return errorResult(err), nil
		}
	}

	if args.Action != "" {
		node, err = h.runNodeAction(ctx, projectID, node, args.Action)
		if err != nil {
			return errorResult(err), nil
		}
	}
	return jsonResult(node), nil
}

// nodeProperties validates the requested property changes against the node's
// type and run state.
func nodeProperties(node gns3.Node, args setNodeArgs) (map[string]any, error) {
	properties := map[string]any{}

	if args.Name != nil {
		if node.Status != gns3.NodeStatusStopped {
			return nil, mcperr.New(mcperr.CodeNodeRunning,
				fmt.Sprintf("renaming %q requires the node to be stopped (status: %s)", node.Name, node.Status), nil).
				WithSuggestion("call set_node with action=stop first")
		}
		properties["name"] = *args.Name
	}
	if args.X != nil {
		properties["x"] = *args.X
	}
	if args.Y != nil {
		properties["y"] = *args.Y
	}

	isQemu := node.NodeType == "qemu"
	isDocker := node.NodeType == "docker"
	if args.RAM != nil {
		if !isQemu {
			return nil, propertyTypeError(node, "ram", "qemu")
		}
		properties["ram"] = *args.RAM
	}
	if args.CPUs != nil {
		if !isQemu {
			return nil, propertyTypeError(node, "cpus", "qemu")
		}
		properties["cpus"] = *args.CPUs
	}
	if args.Adapters != nil {
		if !isQemu && !isDocker {
			return nil, propertyTypeError(node, "adapters", "qemu or docker")
		}
		properties["adapters"] = *args.Adapters
	}
	return properties, nil
}

func propertyTypeError(node gns3.Node, property, wanted string) error {
	return mcperr.New(mcperr.CodeInvalidNodeState,
		fmt.Sprintf("%q only applies to %s nodes; %q is %s", property, wanted, node.Name, node.NodeType), nil).
		WithContext("node", node.Name).
		WithContext("node_type", node.NodeType)
}

// runNodeAction performs start/stop/suspend/reload, or the restart
// composite: stop, poll for a confirmed stop, then start.
func (h *Handler) runNodeAction(ctx context.Context, projectID string, node gns3.Node, action string) (gns3.Node, error) {
	action = strings.ToLower(action)
	if action != "restart" {
		return h.emulator.NodeAction(ctx, projectID, node.NodeID, action)
	}

	if _, err := h.emulator.NodeAction(ctx, projectID, node.NodeID, gns3.NodeActionStop); err != nil {
		return gns3.Node{}, err
	}

	stopped := false
	for i := 0; i < h.statusPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return gns3.Node{}, mcperr.NewTimeout("restart cancelled while waiting for stop", ctx.Err())
		case <-time.After(h.statusPoll):
		}
		current, err := h.emulator.GetNode(ctx, projectID, node.NodeID)
		if err != nil {
			return gns3.Node{}, err
		}
		if current.Status == gns3.NodeStatusStopped {
			stopped = true
			break
		}
	}
	if !stopped {
		return gns3.Node{}, mcperr.New(mcperr.CodeInvalidNodeState,
			fmt.Sprintf("node %q did not reach stopped state during restart", node.Name), nil).
			WithSuggestion("check the node with get_node_details() and start it manually")
	}

	return h.emulator.NodeAction(ctx, projectID, node.NodeID, gns3.NodeActionStart)
}

// DeleteNode removes a node and its console session.
func (h *Handler) DeleteNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	node, err := h.findNodeByName(ctx, projectID, args.Node)
	if err != nil {
		return errorResult(err), nil
	}

	if err := h.emulator.DeleteNode(ctx, projectID, node.NodeID); err != nil {
		return errorResult(err), nil
	}
	// Best effort: the console session, if any, points at a dead endpoint now.
	_ = h.consoles.DisconnectByNode(node.Name)

	return jsonResult(map[string]string{"deleted": node.NodeID, "name": node.Name}), nil
}

// ConfigureNodeNetwork writes /etc/network/interfaces for a docker node.
func (h *Handler) ConfigureNodeNetwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node      string `json:"node"`
		Interface int    `json:"interface"`
		IPAddress string `json:"ip_address"`
		Gateway   string `json:"gateway"`
		DHCP      bool   `json:"dhcp"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	node, err := h.findNodeByName(ctx, projectID, args.Node)
	if err != nil {
		return errorResult(err), nil
	}
	if node.NodeType != "docker" {
		return errorResult(mcperr.New(mcperr.CodeInvalidNodeState,
			fmt.Sprintf("configure_node_network only applies to docker nodes; %q is %s", node.Name, node.NodeType), nil)), nil
	}
	if !args.DHCP && args.IPAddress == "" {
		return errorResult(mcperr.NewMissingParameter("ip_address")), nil
	}

	content := interfacesFile(args.Interface, args.IPAddress, args.Gateway, args.DHCP)
	if err := h.emulator.WriteNodeFile(ctx, projectID, node.NodeID, "etc/network/interfaces", content); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"node":      node.Name,
		"interface": fmt.Sprintf("eth%d", args.Interface),
		"config":    content,
		"note":      "configuration takes effect on the next node start",
	}), nil
}

// interfacesFile renders a Debian-style interfaces stanza.
func interfacesFile(iface int, address, gateway string, dhcp bool) string {
	name := fmt.Sprintf("eth%d", iface)
	var b strings.Builder
	fmt.Fprintf(&b, "auto %s\n", name)
	if dhcp {
		fmt.Fprintf(&b, "iface %s inet dhcp\n", name)
		return b.String()
	}
	fmt.Fprintf(&b, "iface %s inet static\n", name)
	fmt.Fprintf(&b, "\taddress %s\n", address)
	if gateway != "" {
		fmt.Fprintf(&b, "\tgateway %s\n", gateway)
	}
	return b.String()
}

// GetNodeFile reads a file from a node's working directory.
func (h *Handler) GetNodeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
		Path string `json:"path"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	node, err := h.findNodeByName(ctx, projectID, args.Node)
	if err != nil {
		return errorResult(err), nil
	}

	content, err := h.emulator.ReadNodeFile(ctx, projectID, node.NodeID, args.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]string{"node": node.Name, "path": args.Path, "content": content}), nil
}

// WriteNodeFile writes a file into a node's working directory.
func (h *Handler) WriteNodeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node    string `json:"node"`
		Path    string `json:"path"`
		Content string `json:"content"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	node, err := h.findNodeByName(ctx, projectID, args.Node)
	if err != nil {
		return errorResult(err), nil
	}

	if err := h.emulator.WriteNodeFile(ctx, projectID, node.NodeID, args.Path, args.Content); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"node": node.Name, "path": args.Path, "bytes": len(args.Content)}), nil
}
