// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package gns3 implements the client for the GNS3 controller HTTP API (v3).
//
// The client covers the subset of the REST surface the mediator needs:
// projects, nodes, links, templates, drawings, snapshots, node files and the
// controller version. All methods speak JSON and attach the bearer token
// obtained by Authenticate.
package gns3

// Project is a GNS3 project as returned by the controller.
type Project struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Path      string `json:"path,omitempty"`
	AutoStart bool   `json:"auto_start,omitempty"`
	AutoOpen  bool   `json:"auto_open,omitempty"`
	AutoClose bool   `json:"auto_close,omitempty"`
}

// Port describes one addressable interface on a node. The
// (adapter_number, port_number) pair is the port's identity; the name is a
// convenience for humans and agents.
type Port struct {
	AdapterNumber int    `json:"adapter_number"`
	PortNumber    int    `json:"port_number"`
	Name          string `json:"name"`
	ShortName     string `json:"short_name,omitempty"`
	LinkType      string `json:"link_type,omitempty"`
	DataLinkTypes any    `json:"data_link_types,omitempty"`
}

// Node is a device inside a project.
type Node struct {
	NodeID      string         `json:"node_id"`
	Name        string         `json:"name"`
	NodeType    string         `json:"node_type"`
	Status      string         `json:"status"`
	Console     int            `json:"console"`
	ConsoleHost string         `json:"console_host,omitempty"`
	ConsoleType string         `json:"console_type,omitempty"`
	X           int            `json:"x"`
	Y           int            `json:"y"`
	Z           int            `json:"z,omitempty"`
	Locked      bool           `json:"locked,omitempty"`
	Ports       []Port         `json:"ports,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Node run states reported by the controller.
const (
	NodeStatusStarted   = "started"
	NodeStatusStopped   = "stopped"
	NodeStatusSuspended = "suspended"
)

// LinkEndpoint is one of the two ends of a link.
type LinkEndpoint struct {
	NodeID        string         `json:"node_id"`
	AdapterNumber int            `json:"adapter_number"`
	PortNumber    int            `json:"port_number"`
	Label         map[string]any `json:"label,omitempty"`
}

// Link is a two-endpoint edge between ports on two distinct nodes.
type Link struct {
	LinkID    string         `json:"link_id"`
	Nodes     []LinkEndpoint `json:"nodes"`
	LinkType  string         `json:"link_type,omitempty"`
	Suspended bool           `json:"suspended,omitempty"`
}

// Template describes an appliance template nodes can be created from.
type Template struct {
	TemplateID   string `json:"template_id"`
	Name         string `json:"name"`
	TemplateType string `json:"template_type"`
	Category     string `json:"category,omitempty"`
	SymbolID     string `json:"symbol,omitempty"`
	Builtin      bool   `json:"builtin,omitempty"`
}

// Drawing is a free-form SVG annotation on the project canvas.
type Drawing struct {
	DrawingID string `json:"drawing_id"`
	SVG       string `json:"svg"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z,omitempty"`
	Rotation  int    `json:"rotation,omitempty"`
	Locked    bool   `json:"locked,omitempty"`
}

// Snapshot is a saved project state.
type Snapshot struct {
	SnapshotID string `json:"snapshot_id"`
	ProjectID  string `json:"project_id,omitempty"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at,omitempty"`
}

// Version is the controller version report.
type Version struct {
	Version        string `json:"version"`
	ControllerHost string `json:"controller_host,omitempty"`
	Local          bool   `json:"local,omitempty"`
}
