// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
)

func registerConsoleTools(mcpServer *server.MCPServer, h *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name: "send_console",
		Description: "Send text to a node's console. Backslash escapes (\\n \\r \\t \\x1b) are interpreted " +
			"and line endings normalized to CRLF unless raw=true. Connects automatically if needed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name (case-sensitive)",
				},
				"data": map[string]interface{}{
					"type":        "string",
					"description": "Text to send; append \\n to press enter",
				},
				"raw": map[string]interface{}{
					"type":        "boolean",
					"description": "Send bytes untouched: no escape interpretation, no CRLF normalization",
				},
			},
			Required: []string{"node", "data"},
		},
	}, h.SendConsole)

	mcpServer.AddTool(mcp.Tool{
		Name: "read_console",
		Description: "Read a node's console output. mode=diff (default) returns only output since the " +
			"last read; mode=full returns the whole buffer without consuming anything.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{"type": "string"},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "\"diff\" or \"full\"",
				},
			},
			Required: []string{"node"},
		},
	}, h.ReadConsole)

	mcpServer.AddTool(mcp.Tool{
		Name: "send_and_wait_console",
		Description: "Send text to a node's console, then poll the output until a regex matches or the " +
			"timeout elapses. Returns the accumulated output, whether the pattern matched, and the wait time.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node":    map[string]interface{}{"type": "string"},
				"data":    map[string]interface{}{"type": "string"},
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Regular expression to wait for",
				},
				"timeout": map[string]interface{}{
					"type":        "number",
					"description": "Seconds to wait before giving up (default 30)",
				},
				"raw": map[string]interface{}{"type": "boolean"},
			},
			Required: []string{"node", "data", "pattern"},
		},
	}, h.SendAndWaitConsole)

	mcpServer.AddTool(mcp.Tool{
		Name: "send_keystroke",
		Description: "Send a named key to a node's console: arrows, f1-f12, enter, tab, esc, backspace, " +
			"space, home/end/pageup/pagedown/insert/delete, ctrl_a..ctrl_z.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{"type": "string"},
				"key":  map[string]interface{}{"type": "string"},
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Repeat count (default 1)",
				},
			},
			Required: []string{"node", "key"},
		},
	}, h.SendKeystroke)

	mcpServer.AddTool(mcp.Tool{
		Name:        "disconnect_console",
		Description: "Close the console session for a node",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{"type": "string"},
			},
			Required: []string{"node"},
		},
	}, h.DisconnectConsole)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_console_status",
		Description: "Show console session status for one node or all nodes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"node": map[string]interface{}{
					"type":        "string",
					"description": "Node name; omit for all sessions",
				},
			},
		},
	}, h.GetConsoleStatus)
}

// consoleEndpoint picks the TCP endpoint for a node's console. Controllers
// frequently report a wildcard console host; fall back to the controller's
// own address then.
func (h *Handler) consoleEndpoint(node gns3.Node) (string, int, error) {
	if node.Console == 0 {
		return "", 0, mcperr.New(mcperr.CodeInvalidNodeState,
			fmt.Sprintf("node %q has no console port", node.Name), nil).
			WithSuggestion("start the node first; consoles exist only on started nodes")
	}
	host := node.ConsoleHost
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = h.consoleHost
	}
	if host == "" {
		return "", 0, mcperr.New(mcperr.CodeConsoleConnectionFailed,
			fmt.Sprintf("cannot determine console host for node %q", node.Name), nil)
	}
	return host, node.Console, nil
}

// ensureConsole opens a session for the node unless one already exists.
func (h *Handler) ensureConsole(ctx context.Context, nodeName string) error {
	if _, ok := h.consoles.SessionIDByNode(nodeName); ok {
		return nil
	}

	projectID, err := h.requireProject(ctx)
	if err != nil {
		return err
	}
	node, err := h.findNodeByName(ctx, projectID, nodeName)
	if err != nil {
		return err
	}
	host, port, err := h.consoleEndpoint(node)
	if err != nil {
		return err
	}
	_, err = h.consoles.Connect(ctx, host, port, nodeName)
	return err
}

// outboundConsoleText applies escape interpretation and CRLF normalization
// exactly once, here, unless the caller asked for raw bytes.
func outboundConsoleText(data string, raw bool) string {
	if raw {
		return data
	}
	return normalizeNewlines(interpretEscapes(data))
}

// SendConsole writes text to a node's console.
func (h *Handler) SendConsole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
		Data string `json:"data"`
		Raw  bool   `json:"raw"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	if err := h.ensureConsole(ctx, args.Node); err != nil {
		return errorResult(err), nil
	}
	payload := outboundConsoleText(args.Data, args.Raw)
	if err := h.consoles.SendByNode(args.Node, []byte(payload)); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"node": args.Node, "bytes_sent": len(payload)}), nil
}

// ReadConsole reads console output in diff or full mode.
func (h *Handler) ReadConsole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
		Mode string `json:"mode"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	if err := h.ensureConsole(ctx, args.Node); err != nil {
		return errorResult(err), nil
	}

	var (
		output string
		err    error
	)
	switch strings.ToLower(args.Mode) {
	case "", "diff":
		output, err = h.consoles.GetDiffByNode(args.Node)
	case "full":
		output, err = h.consoles.GetOutputByNode(args.Node)
	default:
		return errorResult(mcperr.NewInvalidParameter(
			fmt.Sprintf("unknown read mode %q; expected \"diff\" or \"full\"", args.Mode), nil)), nil
	}
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]string{"node": args.Node, "output": output}), nil
}

// SendAndWaitConsole sends text then polls the diff until a regex matches or
// the timeout expires.
func (h *Handler) SendAndWaitConsole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node    string  `json:"node"`
		Data    string  `json:"data"`
		Pattern string  `json:"pattern"`
		Timeout float64 `json:"timeout"`
		Raw     bool    `json:"raw"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return errorResult(mcperr.NewInvalidParameter(
			fmt.Sprintf("invalid pattern %q", args.Pattern), err)), nil
	}
	timeout := 30 * time.Second
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout * float64(time.Second))
	}

	if err := h.ensureConsole(ctx, args.Node); err != nil {
		return errorResult(err), nil
	}
	payload := outboundConsoleText(args.Data, args.Raw)
	if err := h.consoles.SendByNode(args.Node, []byte(payload)); err != nil {
		return errorResult(err), nil
	}

	start := time.Now()
	deadline := start.Add(timeout)
	var output strings.Builder
	for {
		diff, err := h.consoles.GetDiffByNode(args.Node)
		if err != nil {
			return errorResult(err), nil
		}
		output.WriteString(diff)

		if re.MatchString(output.String()) {
			return jsonResult(map[string]any{
				"node":             args.Node,
				"output":           output.String(),
				"pattern_found":    true,
				"timeout_occurred": false,
				"wait_time":        time.Since(start).Seconds(),
			}), nil
		}
		if !time.Now().Before(deadline) {
			return jsonResult(map[string]any{
				"node":             args.Node,
				"output":           output.String(),
				"pattern_found":    false,
				"timeout_occurred": true,
				"wait_time":        time.Since(start).Seconds(),
			}), nil
		}

		select {
		case <-ctx.Done():
			return errorResult(mcperr.NewTimeout("send_and_wait_console cancelled", ctx.Err())), nil
		case <-time.After(h.consolePoll):
		}
	}
}

// SendKeystroke sends a named key's byte sequence, bypassing normalization.
func (h *Handler) SendKeystroke(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node  string `json:"node"`
		Key   string `json:"key"`
		Count int    `json:"count"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	seq, err := keystrokeBytes(args.Key)
	if err != nil {
		return errorResult(err), nil
	}
	count := args.Count
	if count <= 0 {
		count = 1
	}

	if err := h.ensureConsole(ctx, args.Node); err != nil {
		return errorResult(err), nil
	}
	payload := strings.Repeat(seq, count)
	if err := h.consoles.SendByNode(args.Node, []byte(payload)); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"node": args.Node, "key": args.Key, "count": count}), nil
}

// DisconnectConsole closes a node's console session.
func (h *Handler) DisconnectConsole(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	if err := h.consoles.DisconnectByNode(args.Node); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]string{"disconnected": args.Node}), nil
}

// GetConsoleStatus reports session state for one node or all.
func (h *Handler) GetConsoleStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Node string `json:"node"`
	}{}
	if err := request.BindArguments(&args); err != nil {
		return bindError(err), nil
	}

	if args.Node != "" {
		info, err := h.consoles.GetByNode(args.Node)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(info), nil
	}
	return jsonResult(h.consoles.List()), nil
}
