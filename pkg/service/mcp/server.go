package mcp

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/ctxkeep/pkg/usecase/service"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "ctxkeep"

// Server exposes the context, backup and session verbs as MCP tools
type Server struct {
	uc     *service.UseCase
	server *mcp.Server
}

// NewServer creates an MCP server with every tool registered
func NewServer(uc *service.UseCase, version string) *Server {
	s := &Server{
		uc: uc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: version,
		}, nil),
	}

	s.registerContextTools()
	s.registerBackupTools()
	s.registerSessionTools()

	return s
}

// Run serves on transport until the client disconnects or ctx is cancelled
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	logging.From(ctx).Info("MCP server started", "name", serverName)
	if err := s.server.Run(ctx, transport); err != nil {
		return goerr.Wrap(err, "MCP server stopped with error")
	}
	return nil
}

// Connect starts one session on transport without blocking
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	session, err := s.server.Connect(ctx, transport, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect MCP transport")
	}
	return session, nil
}

// jsonResult renders v as indented JSON text content
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}
