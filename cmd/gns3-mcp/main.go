// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the GNS3 MCP mediator.
package main

import (
	"errors"
	"os"

	"github.com/gns3-labs/gns3-mcp/cmd/gns3-mcp/app"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

func main() {
	logger.Initialize()

	err := app.NewRootCmd().Execute()
	logger.Sync()

	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, app.ErrInterrupted):
		// Conventional exit code for termination by SIGINT.
		os.Exit(130)
	default:
		os.Exit(1)
	}
}
