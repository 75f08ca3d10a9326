// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package gns3

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// ListLinks lists the links of a project.
func (c *Client) ListLinks(ctx context.Context, projectID string) ([]Link, error) {
	var links []Link
	err := c.do(ctx, http.MethodGet, "/projects/"+escapePath(projectID)+"/links", nil, &links)
	return links, err
}

// CreateLink creates a link between the two endpoints. Link operations are
// occasionally slow on the emulator, so the timeout is caller-tunable; pass 0
// for the default.
func (c *Client) CreateLink(ctx context.Context, projectID string, endpoints []LinkEndpoint, timeout time.Duration) (Link, error) {
	if len(endpoints) != 2 {
		return Link{}, mcperr.NewInvalidParameter(
			fmt.Sprintf("a link needs exactly 2 endpoints, got %d", len(endpoints)), nil)
	}
	if timeout <= 0 {
		timeout = DefaultLinkTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var link Link
	err := c.do(ctx, http.MethodPost, "/projects/"+escapePath(projectID)+"/links",
		map[string]any{"nodes": endpoints}, &link)
	return link, err
}

// DeleteLink removes a link. Pass timeout 0 for the default.
func (c *Client) DeleteLink(ctx context.Context, projectID, linkID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultLinkTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.do(ctx, http.MethodDelete,
		"/projects/"+escapePath(projectID)+"/links/"+escapePath(linkID), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return mcperr.NewLinkNotFound(fmt.Sprintf("link %q not found", linkID))
	}
	return err
}
