// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package gns3

import (
	"context"
	"fmt"
	"net/http"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// ListTemplates lists the appliance templates on the controller.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var templates []Template
	err := c.do(ctx, http.MethodGet, "/templates", nil, &templates)
	return templates, err
}

// GetTemplate reads one template by id.
func (c *Client) GetTemplate(ctx context.Context, templateID string) (Template, error) {
	var t Template
	err := c.do(ctx, http.MethodGet, "/templates/"+escapePath(templateID), nil, &t)
	if IsStatus(err, http.StatusNotFound) {
		return t, mcperr.New(mcperr.CodeTemplateNotFound,
			fmt.Sprintf("template %q not found", templateID), nil)
	}
	return t, err
}

// GetSymbol reads the raw symbol image (PNG or SVG bytes).
func (c *Client) GetSymbol(ctx context.Context, symbolID string) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, "/symbols/"+escapePath(symbolID)+"/raw", nil, "")
}
