package mcp

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type registerSessionParams struct {
	ID          string `json:"id,omitempty" jsonschema:"Session ID. Generated when empty"`
	Content     string `json:"content,omitempty" jsonschema:"Initial buffered content"`
	ProjectPath string `json:"project_path,omitempty" jsonschema:"Project the session belongs to"`
}

type updateSessionParams struct {
	ID      string `json:"id" jsonschema:"Session ID. Unknown sessions are registered"`
	Content string `json:"content" jsonschema:"Full buffered content, replacing the previous one"`
}

type captureSessionParams struct {
	ID       string          `json:"id" jsonschema:"Session ID"`
	Metadata *metadataParams `json:"metadata,omitempty" jsonschema:"Metadata added to the captured context"`
}

type endSessionParams struct {
	ID      string `json:"id" jsonschema:"Session ID"`
	Capture *bool  `json:"capture,omitempty" jsonschema:"Capture the content before ending. Defaults to true"`
}

func (s *Server) registerSessionTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "register_session",
		Description: "Start tracking an active session",
	}, s.registerSession)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_session",
		Description: "Replace the buffered content of an active session",
	}, s.updateSession)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "capture_session",
		Description: "Store the buffered content of a session as a context record",
	}, s.captureSession)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "capture_all_sessions",
		Description: "Capture every idle or long-running session now",
	}, s.captureAllSessions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "end_session",
		Description: "Stop tracking a session, capturing it first by default",
	}, s.endSession)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_active_sessions",
		Description: "List tracked sessions, most recently updated first",
	}, s.getActiveSessions)
}

func (s *Server) registerSession(ctx context.Context, req *mcp.CallToolRequest, params registerSessionParams) (*mcp.CallToolResult, any, error) {
	sess := s.uc.RegisterSession(ctx, model.SessionID(params.ID), params.Content, params.ProjectPath)
	return jsonResult(sess)
}

func (s *Server) updateSession(ctx context.Context, req *mcp.CallToolRequest, params updateSessionParams) (*mcp.CallToolResult, any, error) {
	if params.ID == "" {
		return nil, nil, goerr.Wrap(model.ErrValidation, "session id is required")
	}
	sess := s.uc.UpdateSession(ctx, model.SessionID(params.ID), params.Content)
	return jsonResult(sess)
}

func (s *Server) captureSession(ctx context.Context, req *mcp.CallToolRequest, params captureSessionParams) (*mcp.CallToolResult, any, error) {
	captured, err := s.uc.CaptureSession(ctx, model.SessionID(params.ID), params.Metadata.toModel())
	if err != nil {
		return nil, nil, err
	}
	if !captured {
		return textResult(fmt.Sprintf("Session %s was not captured (unknown or too short)", params.ID))
	}
	return textResult(fmt.Sprintf("Session %s captured", params.ID))
}

func (s *Server) captureAllSessions(ctx context.Context, req *mcp.CallToolRequest, params emptyParams) (*mcp.CallToolResult, any, error) {
	n := s.uc.CaptureAllSessions(ctx)
	return textResult(fmt.Sprintf("Captured %d sessions", n))
}

func (s *Server) endSession(ctx context.Context, req *mcp.CallToolRequest, params endSessionParams) (*mcp.CallToolResult, any, error) {
	captureContent := true
	if params.Capture != nil {
		captureContent = *params.Capture
	}

	captured, err := s.uc.EndSession(ctx, model.SessionID(params.ID), captureContent)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Session %s ended (captured: %t)", params.ID, captured))
}

func (s *Server) getActiveSessions(ctx context.Context, req *mcp.CallToolRequest, params emptyParams) (*mcp.CallToolResult, any, error) {
	return jsonResult(s.uc.GetActiveSessions(ctx))
}
