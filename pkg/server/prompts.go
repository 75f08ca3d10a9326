// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerPrompts publishes parameterized workflow walkthroughs agents can
// pull in as conversation starters.
func registerPrompts(mcpServer *server.MCPServer) {
	mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "lab_setup",
			Description: "Walk through building a lab: project, nodes, links, boot order",
			Arguments: []mcp.PromptArgument{
				{Name: "project_name", Description: "Name for the lab project"},
			},
		},
		func(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			name := request.Params.Arguments["project_name"]
			if name == "" {
				name = "my-lab"
			}
			return promptResult(fmt.Sprintf(
				"Set up a GNS3 lab called %q step by step:\n"+
					"1. create_project(name=%q) — or open_project if it already exists (list_projects shows what's there).\n"+
					"2. query_resource(\"templates://\") to see which node templates are installed.\n"+
					"3. create_node for each device, spacing x/y by ~150 so the canvas stays readable.\n"+
					"4. set_connection with connect operations; adapters accept port names like \"eth0\" (case-sensitive, see get_node_details).\n"+
					"5. set_node(action=start) per node, then read_console to watch it boot.\n"+
					"Check the result with query_resource(\"projects://{project_id}/topology\").",
				name, name)), nil
		},
	)

	mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "console_troubleshooting",
			Description: "Diagnose a node whose console is silent or misbehaving",
			Arguments: []mcp.PromptArgument{
				{Name: "node", Description: "Node name to troubleshoot"},
			},
		},
		func(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			node := request.Params.Arguments["node"]
			if node == "" {
				node = "R1"
			}
			return promptResult(fmt.Sprintf(
				"Troubleshoot the console of node %q:\n"+
					"1. get_node_details(node=%q) — the node must be started and have a console port.\n"+
					"2. get_console_status(node=%q) — check connected, buffer_size and last_activity.\n"+
					"3. send_console(node=%q, data=\"\\n\") to provoke a prompt, then read_console in diff mode.\n"+
					"4. No output? Some devices need a keypress: send_keystroke(key=\"enter\"), or wait — boot can take minutes.\n"+
					"5. Garbled output usually means a wrong console type; disconnect_console and reconnect after the node settles.",
				node, node, node, node)), nil
		},
	)

	mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "topology_builder",
			Description: "Translate a desired topology description into batched link operations",
			Arguments: []mcp.PromptArgument{
				{Name: "description", Description: "Plain-text description of the desired topology"},
			},
		},
		func(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			description := request.Params.Arguments["description"]
			return promptResult(fmt.Sprintf(
				"Build this topology: %s\n"+
					"Work from the live state: get_links and list_nodes first, then submit ONE set_connection batch.\n"+
					"Rules the validator enforces:\n"+
					"- every port can carry one link; disconnect before reusing a port (a disconnect earlier in the batch frees it)\n"+
					"- adapter names are case-sensitive; get_node_details lists them\n"+
					"- the batch executes in order and stops at the first failure without rollback, so order disconnects before connects.",
				description)), nil
		},
	)
}

func promptResult(text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.NewTextContent(text)},
		},
	}
}
