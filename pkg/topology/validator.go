// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package topology validates and executes batched link operations against a
// point-in-time snapshot of a project's nodes and links.
//
// A batch either validates as a whole or nothing executes. Validation works
// on a copy of the snapshot's port bookkeeping: a disconnect frees its ports
// for later operations in the same batch, a connect claims them. The snapshot
// itself is taken once and never refetched mid-batch.
package topology

import (
	"fmt"
	"sort"
	"strings"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
)

// Batch operation actions.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// maxListedPorts caps how many available port names an INVALID_ADAPTER error
// spells out before switching to a count.
const maxListedPorts = 15

// Operation is one entry of a set_connection batch as submitted by the agent.
// AdapterA/AdapterB accept either a non-negative adapter number or a
// case-sensitive port name such as "eth0" or "GigabitEthernet0/0".
type Operation struct {
	Action   string `json:"action"`
	NodeA    string `json:"node_a,omitempty"`
	AdapterA any    `json:"adapter_a,omitempty"`
	PortA    int    `json:"port_a,omitempty"`
	NodeB    string `json:"node_b,omitempty"`
	AdapterB any    `json:"adapter_b,omitempty"`
	PortB    int    `json:"port_b,omitempty"`
	LinkID   string `json:"link_id,omitempty"`
}

// PortRef identifies a port by its numeric coordinates.
type PortRef struct {
	Adapter int
	Port    int
}

// Snapshot is a consistent view of a project's nodes and links with the
// lookup tables the validator needs precomputed.
type Snapshot struct {
	NodesByName map[string]*gns3.Node
	NodesByID   map[string]*gns3.Node

	// PortUsage maps node id -> adapter -> set of occupied port numbers,
	// derived from the live links.
	PortUsage map[string]map[int]map[int]bool

	// AdapterNames maps node name -> port name -> numeric coordinates.
	// Lookups are case-sensitive.
	AdapterNames map[string]map[string]PortRef

	Links map[string]*gns3.Link
}

// BuildSnapshot precomputes the validator's lookup tables from one
// (nodes, links) fetch.
func BuildSnapshot(nodes []gns3.Node, links []gns3.Link) *Snapshot {
	s := &Snapshot{
		NodesByName:  make(map[string]*gns3.Node, len(nodes)),
		NodesByID:    make(map[string]*gns3.Node, len(nodes)),
		PortUsage:    make(map[string]map[int]map[int]bool),
		AdapterNames: make(map[string]map[string]PortRef, len(nodes)),
		Links:        make(map[string]*gns3.Link, len(links)),
	}
	for i := range nodes {
		n := &nodes[i]
		s.NodesByName[n.Name] = n
		s.NodesByID[n.NodeID] = n
		if len(n.Ports) > 0 {
			names := make(map[string]PortRef, len(n.Ports))
			for _, p := range n.Ports {
				names[p.Name] = PortRef{Adapter: p.AdapterNumber, Port: p.PortNumber}
			}
			s.AdapterNames[n.Name] = names
		}
	}
	for i := range links {
		l := &links[i]
		s.Links[l.LinkID] = l
		for _, ep := range l.Nodes {
			s.markUsed(ep.NodeID, ep.AdapterNumber, ep.PortNumber)
		}
	}
	return s
}

func (s *Snapshot) markUsed(nodeID string, adapter, port int) {
	adapters, ok := s.PortUsage[nodeID]
	if !ok {
		adapters = make(map[int]map[int]bool)
		s.PortUsage[nodeID] = adapters
	}
	ports, ok := adapters[adapter]
	if !ok {
		ports = make(map[int]bool)
		adapters[adapter] = ports
	}
	ports[port] = true
}

func (s *Snapshot) used(nodeID string, adapter, port int) bool {
	return s.PortUsage[nodeID][adapter][port]
}

// ResolveAdapter turns an adapter specifier into concrete coordinates and a
// port name. A non-negative integer passes through with the caller-supplied
// port number; a string is resolved case-sensitively against the node's
// published port names.
func (s *Snapshot) ResolveAdapter(nodeName string, spec any, callerPort int) (adapter, port int, name string, err error) {
	switch v := spec.(type) {
	case int:
		return s.resolveNumeric(nodeName, v, callerPort)
	case int64:
		return s.resolveNumeric(nodeName, int(v), callerPort)
	case float64:
		// JSON numbers decode as float64.
		if v != float64(int(v)) {
			return 0, 0, "", mcperr.NewInvalidAdapter(
				fmt.Sprintf("adapter number must be an integer, got %v", v)).
				WithContext("node", nodeName)
		}
		return s.resolveNumeric(nodeName, int(v), callerPort)
	case string:
		return s.resolveName(nodeName, v)
	case nil:
		return 0, 0, "", mcperr.NewMissingParameter("adapter")
	default:
		return 0, 0, "", mcperr.NewInvalidAdapter(
			fmt.Sprintf("adapter must be a number or a port name, got %T", spec)).
			WithContext("node", nodeName)
	}
}

func (s *Snapshot) resolveNumeric(nodeName string, adapter, port int) (int, int, string, error) {
	if adapter < 0 {
		return 0, 0, "", mcperr.NewInvalidAdapter(
			fmt.Sprintf("adapter number must be non-negative, got %d", adapter)).
			WithContext("node", nodeName)
	}
	if node, ok := s.NodesByName[nodeName]; ok {
		for _, p := range node.Ports {
			if p.AdapterNumber == adapter && p.PortNumber == port {
				return adapter, port, p.Name, nil
			}
		}
	}
	return adapter, port, fmt.Sprintf("adapter%d/port%d", adapter, port), nil
}

func (s *Snapshot) resolveName(nodeName, portName string) (int, int, string, error) {
	names, ok := s.AdapterNames[nodeName]
	if !ok || len(names) == 0 {
		return 0, 0, "", mcperr.NewInvalidAdapter(
			fmt.Sprintf("node %q publishes no port info; use a numeric adapter/port pair", nodeName)).
			WithContext("node", nodeName).
			WithContext("adapter", portName)
	}
	if ref, ok := names[portName]; ok {
		return ref.Adapter, ref.Port, portName, nil
	}
	return 0, 0, "", mcperr.NewInvalidAdapter(
		fmt.Sprintf("node %q has no port named %q (names are case-sensitive)", nodeName, portName)).
		WithDetails("available ports: " + availablePortNames(names)).
		WithContext("node", nodeName).
		WithContext("adapter", portName)
}

func availablePortNames(names map[string]PortRef) string {
	list := make([]string, 0, len(names))
	for name := range names {
		list = append(list, name)
	}
	sort.Strings(list)
	if len(list) > maxListedPorts {
		return fmt.Sprintf("%s, ... (%d total)",
			strings.Join(list[:maxListedPorts], ", "), len(list))
	}
	return strings.Join(list, ", ")
}

// resolvedEndpoint is one validated end of a connect operation.
type resolvedEndpoint struct {
	NodeID   string
	NodeName string
	Adapter  int
	Port     int
	PortName string
}

// plannedOp is one validated batch entry ready for execution.
type plannedOp struct {
	Index int
	Op    Operation
	A, B  resolvedEndpoint // connect only
}

// Plan is the output of a successful ValidateBatch.
type Plan struct {
	ops []plannedOp
}

// Len returns the number of operations in the plan.
func (p *Plan) Len() int { return len(p.ops) }

// ValidateBatch checks every operation against the snapshot and returns an
// execution plan. The first invalid operation fails the whole batch; the
// returned error carries the zero-based operation index in its context.
//
// Port bookkeeping is simulated across the batch: a disconnect frees the
// link's ports for later operations, a connect claims its ports. Two connects
// claiming the same port therefore fail on the second one even though the
// snapshot showed it free.
func (s *Snapshot) ValidateBatch(ops []Operation) (*Plan, error) {
	working := s.cloneUsage()
	links := make(map[string]*gns3.Link, len(s.Links))
	for id, l := range s.Links {
		links[id] = l
	}

	plan := &Plan{ops: make([]plannedOp, 0, len(ops))}
	for i, op := range ops {
		switch op.Action {
		case ActionConnect:
			a, b, err := s.validateConnect(working, op)
			if err != nil {
				return nil, tagIndex(err, i)
			}
			markUsed(working, a.NodeID, a.Adapter, a.Port)
			markUsed(working, b.NodeID, b.Adapter, b.Port)
			plan.ops = append(plan.ops, plannedOp{Index: i, Op: op, A: a, B: b})

		case ActionDisconnect:
			if op.LinkID == "" {
				return nil, tagIndex(mcperr.NewMissingParameter("link_id"), i)
			}
			link, ok := links[op.LinkID]
			if !ok {
				return nil, tagIndex(mcperr.NewLinkNotFound(
					fmt.Sprintf("link %q is not in the current topology", op.LinkID)), i)
			}
			for _, ep := range link.Nodes {
				markFree(working, ep.NodeID, ep.AdapterNumber, ep.PortNumber)
			}
			delete(links, op.LinkID)
			plan.ops = append(plan.ops, plannedOp{Index: i, Op: op})

		default:
			return nil, tagIndex(mcperr.NewInvalidParameter(
				fmt.Sprintf("unknown action %q; expected %q or %q", op.Action, ActionConnect, ActionDisconnect), nil), i)
		}
	}
	return plan, nil
}

func (s *Snapshot) validateConnect(usage map[string]map[int]map[int]bool, op Operation) (resolvedEndpoint, resolvedEndpoint, error) {
	// A link joins ports on two distinct nodes.
	if op.NodeA != "" && op.NodeA == op.NodeB {
		return resolvedEndpoint{}, resolvedEndpoint{}, mcperr.NewInvalidParameter(
			fmt.Sprintf("cannot link node %q to itself; a link joins two distinct nodes", op.NodeA), nil)
	}

	a, err := s.resolveConnectEnd(usage, op.NodeA, op.AdapterA, op.PortA)
	if err != nil {
		return resolvedEndpoint{}, resolvedEndpoint{}, err
	}
	b, err := s.resolveConnectEnd(usage, op.NodeB, op.AdapterB, op.PortB)
	if err != nil {
		return resolvedEndpoint{}, resolvedEndpoint{}, err
	}
	return a, b, nil
}

func (s *Snapshot) resolveConnectEnd(usage map[string]map[int]map[int]bool, nodeName string, spec any, callerPort int) (resolvedEndpoint, error) {
	if nodeName == "" {
		return resolvedEndpoint{}, mcperr.NewMissingParameter("node name")
	}
	node, ok := s.NodesByName[nodeName]
	if !ok {
		return resolvedEndpoint{}, mcperr.NewNodeNotFound(
			fmt.Sprintf("node %q not found in the current project", nodeName))
	}

	adapter, port, name, err := s.ResolveAdapter(nodeName, spec, callerPort)
	if err != nil {
		return resolvedEndpoint{}, err
	}

	// Nodes that publish a port list only accept ports from it.
	if len(node.Ports) > 0 && !hasPort(node, adapter, port) {
		return resolvedEndpoint{}, mcperr.New(mcperr.CodeInvalidPort,
			fmt.Sprintf("node %q has no port at adapter %d port %d", nodeName, adapter, port), nil).
			WithSuggestion("call get_node_details() to see the node's ports").
			WithContext("node", nodeName).
			WithContext("adapter", adapter).
			WithContext("port", port)
	}

	if usage[node.NodeID][adapter][port] {
		return resolvedEndpoint{}, mcperr.NewPortInUse(
			fmt.Sprintf("port %s on node %q (adapter %d, port %d) is already connected",
				name, nodeName, adapter, port)).
			WithContext("node", nodeName).
			WithContext("adapter", adapter).
			WithContext("port", port)
	}

	return resolvedEndpoint{
		NodeID:   node.NodeID,
		NodeName: nodeName,
		Adapter:  adapter,
		Port:     port,
		PortName: name,
	}, nil
}

func hasPort(node *gns3.Node, adapter, port int) bool {
	for _, p := range node.Ports {
		if p.AdapterNumber == adapter && p.PortNumber == port {
			return true
		}
	}
	return false
}

func (s *Snapshot) cloneUsage() map[string]map[int]map[int]bool {
	out := make(map[string]map[int]map[int]bool, len(s.PortUsage))
	for nodeID, adapters := range s.PortUsage {
		outAdapters := make(map[int]map[int]bool, len(adapters))
		for adapter, ports := range adapters {
			outPorts := make(map[int]bool, len(ports))
			for port, used := range ports {
				outPorts[port] = used
			}
			outAdapters[adapter] = outPorts
		}
		out[nodeID] = outAdapters
	}
	return out
}

func markUsed(usage map[string]map[int]map[int]bool, nodeID string, adapter, port int) {
	adapters, ok := usage[nodeID]
	if !ok {
		adapters = make(map[int]map[int]bool)
		usage[nodeID] = adapters
	}
	ports, ok := adapters[adapter]
	if !ok {
		ports = make(map[int]bool)
		adapters[adapter] = ports
	}
	ports[port] = true
}

func markFree(usage map[string]map[int]map[int]bool, nodeID string, adapter, port int) {
	delete(usage[nodeID][adapter], port)
}

func tagIndex(err error, index int) error {
	var e *mcperr.Error
	if mcpErr, ok := err.(*mcperr.Error); ok {
		e = mcpErr
	} else {
		e = mcperr.NewInternal("batch validation failed", err)
	}
	return e.WithContext("operation_index", index)
}
