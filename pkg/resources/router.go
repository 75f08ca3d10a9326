// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package resources answers read-only resource URIs of a fixed grammar,
// shaping emulator and session state into JSON documents for the agent.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/gns3-labs/gns3-mcp/pkg/console"
	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/sshproxy"
	"github.com/gns3-labs/gns3-mcp/pkg/topology"
)

// SupportedPatterns is the full URI grammar, quoted in errors for unknown
// URIs and published as MCP resource templates.
var SupportedPatterns = []string{
	"projects://",
	"projects://{project_id}",
	"projects://{project_id}/nodes/",
	"projects://{project_id}/nodes/{node_id}",
	"projects://{project_id}/nodes/{node_id}/template",
	"projects://{project_id}/links/",
	"projects://{project_id}/drawings/",
	"projects://{project_id}/snapshots/",
	"projects://{project_id}/readme",
	"projects://{project_id}/topology",
	"templates://",
	"templates://{template_id}",
	"sessions://console",
	"sessions://console/{node_name}",
	"sessions://ssh",
	"sessions://ssh/{node_name}",
	"sessions://ssh/{node_name}/history",
	"sessions://ssh/{node_name}/buffer",
	"proxies://",
	"proxies://{proxy_id}",
}

// Catalogue is the read-only slice of the emulator client the router needs.
type Catalogue interface {
	ListProjects(ctx context.Context) ([]gns3.Project, error)
	GetProject(ctx context.Context, projectID string) (gns3.Project, error)
	ListNodes(ctx context.Context, projectID string) ([]gns3.Node, error)
	GetNode(ctx context.Context, projectID, nodeID string) (gns3.Node, error)
	ListLinks(ctx context.Context, projectID string) ([]gns3.Link, error)
	ListDrawings(ctx context.Context, projectID string) ([]gns3.Drawing, error)
	ListSnapshots(ctx context.Context, projectID string) ([]gns3.Snapshot, error)
	ListTemplates(ctx context.Context) ([]gns3.Template, error)
	GetTemplate(ctx context.Context, templateID string) (gns3.Template, error)
	ReadProjectFile(ctx context.Context, projectID, path string) (string, error)
}

// ConsoleRegistry is the slice of the console multiplexer the router needs.
type ConsoleRegistry interface {
	List() []console.Info
	GetByNode(nodeName string) (console.Info, error)
}

// Router resolves resource URIs against the live components.
type Router struct {
	catalogue Catalogue
	consoles  ConsoleRegistry
	ssh       *sshproxy.Router
}

// NewRouter wires a router to its backing services.
func NewRouter(catalogue Catalogue, consoles ConsoleRegistry, ssh *sshproxy.Router) *Router {
	return &Router{catalogue: catalogue, consoles: consoles, ssh: ssh}
}

// Resolve answers one resource URI with a JSON document.
func (r *Router) Resolve(ctx context.Context, uri string) (string, error) {
	scheme, segments, err := parseURI(uri)
	if err != nil {
		return "", err
	}

	switch scheme {
	case "projects":
		return r.resolveProjects(ctx, uri, segments)
	case "templates":
		return r.resolveTemplates(ctx, uri, segments)
	case "sessions":
		return r.resolveSessions(ctx, uri, segments)
	case "proxies":
		return r.resolveProxies(ctx, uri, segments)
	default:
		return "", unknownURI(uri)
	}
}

// parseURI splits "scheme://a/b/c" into the scheme and non-empty path
// segments. A trailing slash is equivalent to none.
func parseURI(uri string) (string, []string, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return "", nil, unknownURI(uri)
	}
	var segments []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return scheme, segments, nil
}

func unknownURI(uri string) error {
	return mcperr.NewInvalidParameter(fmt.Sprintf("unknown resource URI %q", uri), nil).
		WithDetails("supported patterns: " + strings.Join(SupportedPatterns, ", ")).
		WithSuggestion("use query_resource with one of the supported URI patterns").
		WithContext("uri", uri)
}

func (r *Router) resolveProjects(ctx context.Context, uri string, segments []string) (string, error) {
	switch len(segments) {
	case 0:
		projects, err := r.catalogue.ListProjects(ctx)
		if err != nil {
			return "", err
		}
		return marshal(projects)
	case 1:
		project, err := r.catalogue.GetProject(ctx, segments[0])
		if err != nil {
			return "", err
		}
		return marshal(project)
	}

	projectID := segments[0]
	switch segments[1] {
	case "nodes":
		return r.resolveNodes(ctx, uri, projectID, segments[2:])
	case "links":
		if len(segments) != 2 {
			return "", unknownURI(uri)
		}
		links, err := r.catalogue.ListLinks(ctx, projectID)
		if err != nil {
			return "", err
		}
		return marshal(links)
	case "drawings":
		if len(segments) != 2 {
			return "", unknownURI(uri)
		}
		drawings, err := r.catalogue.ListDrawings(ctx, projectID)
		if err != nil {
			return "", err
		}
		return marshal(drawings)
	case "snapshots":
		if len(segments) != 2 {
			return "", unknownURI(uri)
		}
		snapshots, err := r.catalogue.ListSnapshots(ctx, projectID)
		if err != nil {
			return "", err
		}
		return marshal(snapshots)
	case "readme":
		if len(segments) != 2 {
			return "", unknownURI(uri)
		}
		text, err := r.catalogue.ReadProjectFile(ctx, projectID, gns3.ReadmePath)
		if err != nil {
			return "", err
		}
		return marshal(map[string]string{"project_id": projectID, "readme": text})
	case "topology":
		if len(segments) != 2 {
			return "", unknownURI(uri)
		}
		return r.topologyReport(ctx, projectID)
	default:
		return "", unknownURI(uri)
	}
}

// nodeSummary is the reduced node shape used in listings.
type nodeSummary struct {
	NodeID      string `json:"node_id"`
	Name        string `json:"name"`
	NodeType    string `json:"node_type"`
	Status      string `json:"status"`
	Console     int    `json:"console"`
	ConsoleType string `json:"console_type,omitempty"`
}

func (r *Router) resolveNodes(ctx context.Context, uri, projectID string, rest []string) (string, error) {
	switch len(rest) {
	case 0:
		nodes, err := r.catalogue.ListNodes(ctx, projectID)
		if err != nil {
			return "", err
		}
		summaries := make([]nodeSummary, 0, len(nodes))
		for _, n := range nodes {
			summaries = append(summaries, nodeSummary{
				NodeID: n.NodeID, Name: n.Name, NodeType: n.NodeType,
				Status: n.Status, Console: n.Console, ConsoleType: n.ConsoleType,
			})
		}
		return marshal(summaries)
	case 1:
		node, err := r.catalogue.GetNode(ctx, projectID, rest[0])
		if err != nil {
			return "", err
		}
		return marshal(node)
	case 2:
		if rest[1] != "template" {
			return "", unknownURI(uri)
		}
		return r.templateUsageNote(ctx, projectID, rest[0])
	default:
		return "", unknownURI(uri)
	}
}

// templateUsageNote explains how to create more nodes like this one.
func (r *Router) templateUsageNote(ctx context.Context, projectID, nodeID string) (string, error) {
	node, err := r.catalogue.GetNode(ctx, projectID, nodeID)
	if err != nil {
		return "", err
	}
	note := map[string]any{
		"node_id":   node.NodeID,
		"node_name": node.Name,
		"node_type": node.NodeType,
		"usage": fmt.Sprintf(
			"to create another %s node, find a matching template via templates:// and call create_node with its template_id",
			node.NodeType),
	}
	if tpl, ok := node.Properties["template_id"].(string); ok && tpl != "" {
		note["template_id"] = tpl
	}
	return marshal(note)
}

// topologyReport aggregates nodes, links and port occupancy into one view.
func (r *Router) topologyReport(ctx context.Context, projectID string) (string, error) {
	nodes, err := r.catalogue.ListNodes(ctx, projectID)
	if err != nil {
		return "", err
	}
	links, err := r.catalogue.ListLinks(ctx, projectID)
	if err != nil {
		return "", err
	}
	snap := topology.BuildSnapshot(nodes, links)

	type edge struct {
		LinkID string `json:"link_id"`
		NodeA  string `json:"node_a"`
		PortA  string `json:"port_a"`
		NodeB  string `json:"node_b"`
		PortB  string `json:"port_b"`
	}
	edges := make([]edge, 0, len(links))
	for _, l := range links {
		if len(l.Nodes) != 2 {
			continue
		}
		edges = append(edges, edge{
			LinkID: l.LinkID,
			NodeA:  endpointLabel(snap, l.Nodes[0]),
			PortA:  fmt.Sprintf("%d/%d", l.Nodes[0].AdapterNumber, l.Nodes[0].PortNumber),
			NodeB:  endpointLabel(snap, l.Nodes[1]),
			PortB:  fmt.Sprintf("%d/%d", l.Nodes[1].AdapterNumber, l.Nodes[1].PortNumber),
		})
	}

	summaries := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		summaries = append(summaries, nodeSummary{
			NodeID: n.NodeID, Name: n.Name, NodeType: n.NodeType,
			Status: n.Status, Console: n.Console, ConsoleType: n.ConsoleType,
		})
	}
	return marshal(map[string]any{
		"project_id": projectID,
		"nodes":      summaries,
		"links":      edges,
	})
}

func endpointLabel(snap *topology.Snapshot, ep gns3.LinkEndpoint) string {
	if node, ok := snap.NodesByID[ep.NodeID]; ok {
		return node.Name
	}
	return ep.NodeID
}

func (r *Router) resolveTemplates(ctx context.Context, uri string, segments []string) (string, error) {
	switch len(segments) {
	case 0:
		templates, err := r.catalogue.ListTemplates(ctx)
		if err != nil {
			return "", err
		}
		return marshal(templates)
	case 1:
		template, err := r.catalogue.GetTemplate(ctx, segments[0])
		if err != nil {
			return "", err
		}
		return marshal(map[string]any{
			"template": template,
			"usage":    "call create_node with this template_id to add a node to the current project",
		})
	default:
		return "", unknownURI(uri)
	}
}

func (r *Router) resolveSessions(ctx context.Context, uri string, segments []string) (string, error) {
	if len(segments) == 0 {
		return "", unknownURI(uri)
	}
	switch segments[0] {
	case "console":
		switch len(segments) {
		case 1:
			return marshal(r.consoles.List())
		case 2:
			info, err := r.consoles.GetByNode(segments[1])
			if err != nil {
				return "", err
			}
			return marshal(info)
		default:
			return "", unknownURI(uri)
		}
	case "ssh":
		return r.resolveSSH(ctx, uri, segments[1:])
	default:
		return "", unknownURI(uri)
	}
}

func (r *Router) resolveSSH(ctx context.Context, uri string, rest []string) (string, error) {
	switch len(rest) {
	case 0:
		raw, err := r.ssh.Default().Sessions(ctx)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case 1:
		raw, err := r.ssh.ClientFor(rest[0]).Status(ctx, rest[0])
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case 2:
		node := rest[0]
		client := r.ssh.ClientFor(node)
		var (
			raw json.RawMessage
			err error
		)
		switch rest[1] {
		case "history":
			raw, err = client.History(ctx, node)
		case "buffer":
			raw, err = client.Buffer(ctx, node)
		default:
			return "", unknownURI(uri)
		}
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", unknownURI(uri)
	}
}

func (r *Router) resolveProxies(ctx context.Context, uri string, segments []string) (string, error) {
	registry, err := r.ssh.Default().Registry(ctx)
	if err != nil {
		return "", err
	}
	switch len(segments) {
	case 0:
		return marshal(map[string]any{
			"registry":    json.RawMessage(registry),
			"assignments": r.ssh.Assignments(),
		})
	case 1:
		// The registry payload is sidecar-defined; pick the entry by id when
		// the shape allows, otherwise hand back the whole document.
		for _, query := range []string{
			fmt.Sprintf(`proxies.#(proxy_id=="%s")`, segments[0]),
			fmt.Sprintf(`#(proxy_id=="%s")`, segments[0]),
		} {
			if entry := gjson.GetBytes(registry, query); entry.Exists() {
				return entry.Raw, nil
			}
		}
		return string(registry), nil
	default:
		return "", unknownURI(uri)
	}
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", mcperr.NewInternal("cannot encode resource response", err)
	}
	return string(data), nil
}
