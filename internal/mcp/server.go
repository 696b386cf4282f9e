// Package mcp exposes the streak engine as Model Context Protocol tools,
// over stdio for local agents and Streamable HTTP behind the API server.
package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pulsefit/streakd/internal/app/engagement"
)

// Services are the engines the tools call into.
type Services struct {
	Streaks *engagement.StreakEngine
	Metrics *engagement.MetricEngine
	Claims  *engagement.ClaimEngine
}

// Server wraps the MCP server with engine access.
type Server struct {
	mcpServer *mcp.Server
	svc       Services
}

// NewServer creates an MCP server with every streak tool registered.
func NewServer(svc Services, version string) *Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "streakd",
			Version: version,
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		svc:       svc,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server over stdio until ctx ends or the peer hangs up.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a Streamable HTTP handler for mounting at /mcp.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}
