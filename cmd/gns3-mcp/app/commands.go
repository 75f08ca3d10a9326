// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package app provides the command-line interface for the GNS3 MCP mediator.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "gns3-mcp",
	DisableAutoGenTag: true,
	Short:             "MCP server that lets AI agents drive a GNS3 network emulator",
	Long: `gns3-mcp bridges AI agents and the GNS3 network emulator over the
Model Context Protocol. It exposes tools for projects, nodes, links, drawings
and device consoles, resources for browsing topology state, and an optional
SSH-proxy integration for configuring devices once they are reachable.

The server speaks MCP over stdio by default, or over streamable HTTP with
--transport http.`,
	PersistentPreRun: func(*cobra.Command, []string) {
		// Re-initialize once flags are parsed so --debug takes effect.
		logger.Initialize()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates the root command for the gns3-mcp CLI.
func NewRootCmd() *cobra.Command {
	// Accept underscore spellings (--use_https) alongside the dashed forms.
	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Panicf("Binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
