// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
	"github.com/gns3-labs/gns3-mcp/pkg/server"
)

// ErrInterrupted reports that the server was shut down by a signal rather
// than by a failure. main maps it to exit code 130.
var ErrInterrupted = errors.New("interrupted by signal")

// defaultHTTPPort is where the streamable HTTP transport listens unless
// --http-port or MCP_PORT says otherwise.
const defaultHTTPPort = 8100

var serveFlags struct {
	host      string
	port      int
	username  string
	password  string
	useHTTPS  bool
	verifySSL bool

	transport string
	httpHost  string
	httpPort  int

	sshProxyURL string
}

func newServeCommand() *cobra.Command {
	httpPort := defaultHTTPPort
	if envPort := os.Getenv("MCP_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			httpPort = p
		}
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server against a GNS3 controller",
		Long: `Start the MCP server. Authentication against the GNS3 controller runs in
the background with automatic retry, so the server comes up even while the
controller is still booting.

The GNS3 password can be given via --password or the PASSWORD / GNS3_PASSWORD
environment variables. With --transport http, set MCP_API_KEY to require the
matching header on every MCP request; /health stays open.`,
		RunE: serveCmdFunc,
	}

	cmd.Flags().StringVar(&serveFlags.host, "host", "localhost", "GNS3 controller host")
	cmd.Flags().IntVar(&serveFlags.port, "port", 3080, "GNS3 controller port")
	cmd.Flags().StringVar(&serveFlags.username, "username", "admin", "GNS3 username")
	cmd.Flags().StringVar(&serveFlags.password, "password", "",
		"GNS3 password (or PASSWORD / GNS3_PASSWORD env var)")
	cmd.Flags().BoolVar(&serveFlags.useHTTPS, "use-https", false, "Use HTTPS towards the controller")
	cmd.Flags().BoolVar(&serveFlags.verifySSL, "verify-ssl", true, "Verify the controller's TLS certificate")

	cmd.Flags().StringVar(&serveFlags.transport, "transport", server.TransportStdio,
		"MCP transport: stdio or http")
	cmd.Flags().StringVar(&serveFlags.httpHost, "http-host", "127.0.0.1", "HTTP transport listen host")
	cmd.Flags().IntVar(&serveFlags.httpPort, "http-port", httpPort,
		"HTTP transport listen port (can also be set via MCP_PORT env var)")

	cmd.Flags().StringVar(&serveFlags.sshProxyURL, "ssh-proxy-url", "",
		"Base URL of the SSH proxy sidecar (default http://<host>:8022)")

	return cmd
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	password := serveFlags.password
	if password == "" {
		password = os.Getenv("PASSWORD")
	}
	if password == "" {
		password = os.Getenv("GNS3_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("no GNS3 password: use --password or set PASSWORD / GNS3_PASSWORD")
	}

	if serveFlags.transport != server.TransportStdio && serveFlags.transport != server.TransportHTTP {
		return fmt.Errorf("unknown transport %q: expected stdio or http", serveFlags.transport)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(&server.Config{
		GNS3: gns3.Config{
			Host:      serveFlags.host,
			Port:      serveFlags.port,
			Username:  serveFlags.username,
			Password:  password,
			UseHTTPS:  serveFlags.useHTTPS,
			VerifySSL: serveFlags.verifySSL,
		},
		Transport:   serveFlags.transport,
		HTTPHost:    serveFlags.httpHost,
		HTTPPort:    serveFlags.httpPort,
		APIKey:      os.Getenv("MCP_API_KEY"),
		SSHProxyURL: serveFlags.sshProxyURL,
	})

	if err := srv.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		logger.Info("Shut down on signal")
		return ErrInterrupted
	}
	return nil
}
