// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gns3-labs/gns3-mcp/pkg/console"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
	"github.com/gns3-labs/gns3-mcp/pkg/resources"
	"github.com/gns3-labs/gns3-mcp/pkg/sshproxy"
	"github.com/gns3-labs/gns3-mcp/pkg/versions"
)

// Transports the server can speak.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds the assembled server's settings.
type Config struct {
	GNS3 gns3.Config

	Transport string
	HTTPHost  string
	HTTPPort  int

	// APIKey guards the HTTP transport; empty disables the check.
	APIKey string

	// SSHProxyURL overrides the default sidecar address.
	SSHProxyURL string
}

// Server is the assembled mediator: the MCP surface plus the background
// authentication and console-sweeper tasks.
type Server struct {
	config    *Config
	mcpServer *server.MCPServer
	handler   *Handler

	gns3Client *gns3.Client
	consoles   *console.Manager
}

// New wires all components together. Nothing touches the network yet; the
// background authentication loop starts in Run.
func New(config *Config) *Server {
	gns3Client := gns3.NewClient(config.GNS3)
	consoles := console.NewManager()

	sshRouter := sshproxy.DefaultRouter(config.GNS3.Host)
	if config.SSHProxyURL != "" {
		sshRouter = sshproxy.NewRouter(config.SSHProxyURL)
	}

	resourceRouter := resources.NewRouter(gns3Client, consoles, sshRouter)
	handler := NewHandler(gns3Client, consoles, sshRouter, resourceRouter)
	handler.SetConsoleFallbackHost(config.GNS3.Host)

	versionInfo := versions.GetVersionInfo()
	mcpServer := server.NewMCPServer(
		"gns3-mcp",
		versionInfo.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithLogging(),
	)

	registerProjectTools(mcpServer, handler)
	registerNodeTools(mcpServer, handler)
	registerLinkTools(mcpServer, handler)
	registerDrawingTools(mcpServer, handler)
	registerConsoleTools(mcpServer, handler)
	registerSSHTools(mcpServer, handler)
	registerResourceTools(mcpServer, handler)
	registerResources(mcpServer, handler)
	registerPrompts(mcpServer)

	return &Server{
		config:     config,
		mcpServer:  mcpServer,
		handler:    handler,
		gns3Client: gns3Client,
		consoles:   consoles,
	}
}

// Handler exposes the tool handler, mainly for tests.
func (s *Server) Handler() *Handler { return s.handler }

// Run serves the configured transport until ctx is cancelled, then tears
// everything down: background tasks first, console sessions last.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Tool calls are accepted immediately; until the monitor authenticates,
	// emulator-backed tools return a structured unreachable error.
	monitor := gns3.NewMonitor(s.gns3Client, s.handler)
	go monitor.Run(ctx)
	go s.consoles.RunSweeper(ctx)

	var err error
	switch s.config.Transport {
	case TransportStdio, "":
		err = s.serveStdio(ctx)
	case TransportHTTP:
		err = s.serveHTTP(ctx)
	default:
		err = fmt.Errorf("unknown transport %q", s.config.Transport)
	}

	cancel()
	if closeErr := s.consoles.CloseAll(); closeErr != nil {
		logger.Warnf("Closing console sessions on shutdown: %v", closeErr)
	}
	return err
}

func (s *Server) serveStdio(ctx context.Context) error {
	logger.Infof("Serving MCP over stdio (GNS3 at %s)", s.config.GNS3.BaseURL())
	stdioServer := server.NewStdioServer(s.mcpServer)
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	streamableServer := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(runBoundContext(ctx)),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/health", s.healthHandler)
	r.Group(func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(apiKeyMiddleware(s.config.APIKey))
		}
		r.Handle("/mcp", streamableServer)
		r.Handle("/mcp/*", streamableServer)
	})

	addr := fmt.Sprintf("%s:%d", s.config.HTTPHost, s.config.HTTPPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Serving MCP on http://%s/mcp (GNS3 at %s)", addr, s.config.GNS3.BaseURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP transport: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// runBoundContext keeps each request's own context (cancellation, deadlines)
// and additionally cancels it when the server's run context ends, so
// in-flight tool calls stop on shutdown.
func runBoundContext(runCtx context.Context) func(context.Context, *http.Request) context.Context {
	return func(reqCtx context.Context, _ *http.Request) context.Context {
		ctx, cancel := context.WithCancel(reqCtx)
		stop := context.AfterFunc(runCtx, cancel)
		context.AfterFunc(reqCtx, func() { stop() })
		return ctx
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","version":%q,"gns3_connected":%t}`,
		versions.GetVersionInfo().Version, s.gns3Client.IsConnected())
}

// apiKeyMiddleware rejects requests whose MCP_API_KEY header does not match.
func apiKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("MCP_API_KEY")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				logger.Warnf("Rejected MCP request from %s: bad or missing API key", r.RemoteAddr)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
