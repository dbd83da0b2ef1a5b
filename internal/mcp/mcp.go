// Package mcp implements the Model Context Protocol server for Noema.
//
// The MCP server exposes the agent's teach and ask capabilities as tools,
// so MCP-compatible clients can feed knowledge to Noema and query it
// without going through the HTTP API.
package mcp

import (
	"context"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/noema-ai/noema/internal/model"
)

// MessageHandler processes one inbound conversational message.
type MessageHandler interface {
	Handle(ctx context.Context, req model.MessageRequest) (model.MessageResponse, error)
}

// Server wraps the MCP server around the Noema agent.
type Server struct {
	mcpServer *mcpserver.MCPServer
	agent     MessageHandler
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools registered.
func New(agent MessageHandler, version string, logger *slog.Logger) *Server {
	s := &Server{
		agent:  agent,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"noema",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}
