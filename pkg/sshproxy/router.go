// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package sshproxy

import (
	"fmt"
	"sort"
	"sync"
)

// Router maps node names to sidecar instances. Nodes without an explicit
// assignment use the default sidecar; an agent can pin a node to a specific
// lab proxy via the configure operation's proxy field.
type Router struct {
	mu       sync.RWMutex
	byNode   map[string]string  // node name -> proxy base URL
	clients  map[string]*Client // base URL -> client
	fallback *Client
}

// NewRouter creates a router with the given default sidecar address.
func NewRouter(defaultBaseURL string) *Router {
	fallback := NewClient(defaultBaseURL)
	return &Router{
		byNode:   make(map[string]string),
		clients:  map[string]*Client{defaultBaseURL: fallback},
		fallback: fallback,
	}
}

// DefaultRouter creates a router pointing at host on the standard sidecar
// port.
func DefaultRouter(host string) *Router {
	return NewRouter(fmt.Sprintf("http://%s:%d", host, DefaultPort))
}

// Assign pins a node to a specific sidecar. An empty base URL removes the
// pin, reverting the node to the default.
func (r *Router) Assign(node, baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if baseURL == "" {
		delete(r.byNode, node)
		return
	}
	r.byNode[node] = baseURL
	if _, ok := r.clients[baseURL]; !ok {
		r.clients[baseURL] = NewClient(baseURL)
	}
}

// ClientFor returns the sidecar client responsible for the node.
func (r *Router) ClientFor(node string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if base, ok := r.byNode[node]; ok {
		return r.clients[base]
	}
	return r.fallback
}

// Default returns the fallback sidecar client.
func (r *Router) Default() *Client { return r.fallback }

// Assignment is one explicit node-to-proxy pin.
type Assignment struct {
	Node  string `json:"node"`
	Proxy string `json:"proxy"`
}

// Assignments lists the explicit pins, ordered by node name.
func (r *Router) Assignments() []Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Assignment, 0, len(r.byNode))
	for node, base := range r.byNode {
		out = append(out, Assignment{Node: node, Proxy: base})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}
