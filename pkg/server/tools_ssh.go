// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gns3-labs/gns3-mcp/pkg/logger"
	"github.com/gns3-labs/gns3-mcp/pkg/sshproxy"
)

func registerSSHTools(mcpServer *server.MCPServer, h *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name: "configure_ssh_session",
		Description: "Establish an SSH session to a node via the SSH proxy sidecar. " +
			"An explicit proxy URL pins the node to a specific lab proxy for all later SSH calls.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name the session belongs to",
				},
				"host": map[string]interface{}{
					"type":        "string",
					"description": "Address the node's SSH daemon listens on",
				},
				"port": map[string]interface{}{
					"type":        "integer",
					"description": "SSH port (default 22)",
				},
				"username": map[string]interface{}{"type": "string"},
				"password": map[string]interface{}{"type": "string"},
				"device_type": map[string]interface{}{
					"type":        "string",
					"description": "Device driver hint for the proxy, e.g. cisco_ios or linux",
				},
				"proxy": map[string]interface{}{
					"type":        "string",
					"description": "Optional proxy base URL to pin this node to, e.g. http://10.0.0.9:8022",
				},
			},
			Required: []string{"node", "host", "username"},
		},
	}, h.ConfigureSSHSession)

	mcpServer.AddTool(mcp.Tool{
		Name:        "run_ssh_command",
		Description: "Run a command over a node's established SSH session and return its output",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node":    map[string]interface{}{"type": "string"},
				"command": map[string]interface{}{"type": "string"},
				"timeout": map[string]interface{}{
					"type":        "number",
					"description": "Seconds to wait for the command (proxy default if omitted)",
				},
			},
			Required: []string{"node", "command"},
		},
	}, h.RunSSHCommand)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_ssh_status",
		Description: "Show SSH session status for one node, or all sessions plus the proxy registry",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name; omit for all sessions",
				},
			},
		},
	}, h.GetSSHStatus)

	mcpServer.AddTool(mcp.Tool{
		Name: "transfer_file_tftp",
		Description: "Transfer a file to or from a lab device via the SSH proxy's TFTP service. " +
			"The request object is passed to the proxy unchanged.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name whose pinned proxy should handle the transfer",
				},
				"request": map[string]interface{}{
					"type":        "object",
					"description": "Proxy TFTP request, e.g. {direction, filename, host}",
				},
			},
			Required: []string{"node", "request"},
		},
	}, h.TransferFileTFTP)

	mcpServer.AddTool(mcp.Tool{
		Name: "proxy_http_request",
		Description: "Issue an HTTP request from inside the lab network via the SSH proxy. " +
			"Useful for reaching device management APIs that only answer on lab addresses.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name whose pinned proxy should issue the request",
				},
				"request": map[string]interface{}{
					"type":        "object",
					"description": "Proxy HTTP request, e.g. {method, url, headers, body}",
				},
			},
			Required: []string{"node", "request"},
		},
	}, h.ProxyHTTPRequest)
}

// ConfigureSSHSession opens an SSH session through the sidecar, optionally
// pinning the node to a specific lab proxy.
func (h *Handler) ConfigureSSHSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node       string `json:"node"`
		Host       string `json:"host"`
		Port       int    `json:"port"`
		Username   string `json:"username"`
		Password   string `json:"password"`
		DeviceType string `json:"device_type"`
		Proxy      string `json:"proxy"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	if args.Proxy != "" {
		h.ssh.Assign(args.Node, args.Proxy)
		logger.Infof("SSH traffic for node %s routed via %s", args.Node, args.Proxy)
	}

	raw, err := h.ssh.ClientFor(args.Node).Configure(ctx, sshproxy.SessionConfig{
		NodeName: args.Node,
		Host:     args.Host,
		Port:     args.Port,
		Username: args.Username,
		Password: args.Password,
		Device:   args.DeviceType,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return rawResult(raw), nil
}

// RunSSHCommand executes a command over an established session.
func (h *Handler) RunSSHCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node    string  `json:"node"`
		Command string  `json:"command"`
		Timeout float64 `json:"timeout"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	raw, err := h.ssh.ClientFor(args.Node).Execute(ctx, sshproxy.CommandRequest{
		NodeName:       args.Node,
		Command:        args.Command,
		TimeoutSeconds: args.Timeout,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return rawResult(raw), nil
}

// TransferFileTFTP forwards a TFTP transfer request to the node's proxy.
func (h *Handler) TransferFileTFTP(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node    string         `json:"node"`
		Request map[string]any `json:"request"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	raw, err := h.ssh.ClientFor(args.Node).TFTP(ctx, args.Request)
	if err != nil {
		return errorResult(err), nil
	}
	return rawResult(raw), nil
}

// ProxyHTTPRequest forwards an in-lab HTTP request to the node's proxy.
func (h *Handler) ProxyHTTPRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node    string         `json:"node"`
		Request map[string]any `json:"request"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	raw, err := h.ssh.ClientFor(args.Node).HTTPClient(ctx, args.Request)
	if err != nil {
		return errorResult(err), nil
	}
	return rawResult(raw), nil
}

// GetSSHStatus reports one node's session, or everything the sidecar knows.
func (h *Handler) GetSSHStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	if args.Node != "" {
		raw, err := h.ssh.ClientFor(args.Node).Status(ctx, args.Node)
		if err != nil {
			return errorResult(err), nil
		}
		return rawResult(raw), nil
	}

	sessions, err := h.ssh.Default().Sessions(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"sessions":    sessions,
		"assignments": h.ssh.Assignments(),
	}), nil
}
