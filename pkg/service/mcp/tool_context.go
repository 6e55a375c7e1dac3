package mcp

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/service"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type metadataParams struct {
	Tags     []string       `json:"tags,omitempty" jsonschema:"Tags attached to the context"`
	Priority string         `json:"priority,omitempty" jsonschema:"One of low, medium, high, critical"`
	Project  string         `json:"project,omitempty" jsonschema:"Project name or path"`
	Extra    map[string]any `json:"extra,omitempty" jsonschema:"Free-form additional metadata"`
}

func (p *metadataParams) toModel() *model.Metadata {
	if p == nil {
		return nil
	}
	return &model.Metadata{
		Tags:     p.Tags,
		Priority: model.Priority(p.Priority),
		Project:  p.Project,
		Extra:    p.Extra,
	}
}

type createContextParams struct {
	Content  string          `json:"content" jsonschema:"Body of the context"`
	Metadata *metadataParams `json:"metadata,omitempty" jsonschema:"Optional metadata"`
}

type idParams struct {
	ID string `json:"id" jsonschema:"Context ID"`
}

type listContextsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of contexts, newest first. 0 returns all"`
}

type updateContextParams struct {
	ID       string          `json:"id" jsonschema:"Context ID"`
	Content  string          `json:"content,omitempty" jsonschema:"New body. Empty keeps the current body"`
	Metadata *metadataParams `json:"metadata,omitempty" jsonschema:"Fields to merge into the current metadata"`
}

type searchContextsParams struct {
	Query string   `json:"query,omitempty" jsonschema:"Text to look for"`
	Tags  []string `json:"tags,omitempty" jsonschema:"Every tag must be present"`
	Limit int      `json:"limit,omitempty" jsonschema:"Maximum number of results"`
}

type findSimilarParams struct {
	Query      string   `json:"query" jsonschema:"Text to compare against stored contexts"`
	MinScore   *float64 `json:"min_score,omitempty" jsonschema:"Minimum cosine similarity. Omit to use the configured threshold"`
	MaxResults int      `json:"max_results,omitempty" jsonschema:"Maximum number of matches"`
}

func (s *Server) registerContextTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_context",
		Description: "Store a new context record",
	}, s.createContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_context",
		Description: "Get a context record by ID",
	}, s.getContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_contexts",
		Description: "List context records, most recently updated first",
	}, s.listContexts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_context",
		Description: "Update the body and merge metadata of a context record",
	}, s.updateContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_context",
		Description: "Delete a context record",
	}, s.deleteContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_contexts",
		Description: "Search context records by text and tags. Uses semantic ranking when embeddings are enabled",
	}, s.searchContexts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_similar",
		Description: "Rank context records by embedding similarity to a query",
	}, s.findSimilar)
}

func (s *Server) createContext(ctx context.Context, req *mcp.CallToolRequest, params createContextParams) (*mcp.CallToolResult, any, error) {
	var metadata model.Metadata
	if m := params.Metadata.toModel(); m != nil {
		metadata = *m
	}

	c, err := s.uc.CreateContext(ctx, params.Content, metadata)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(c)
}

func (s *Server) getContext(ctx context.Context, req *mcp.CallToolRequest, params idParams) (*mcp.CallToolResult, any, error) {
	c, ok := s.uc.GetContext(ctx, model.ContextID(params.ID))
	if !ok {
		return nil, nil, goerr.Wrap(model.ErrNotFound, "context not found", goerr.V("id", params.ID))
	}
	return jsonResult(c)
}

func (s *Server) listContexts(ctx context.Context, req *mcp.CallToolRequest, params listContextsParams) (*mcp.CallToolResult, any, error) {
	return jsonResult(s.uc.ListContexts(ctx, params.Limit))
}

func (s *Server) updateContext(ctx context.Context, req *mcp.CallToolRequest, params updateContextParams) (*mcp.CallToolResult, any, error) {
	c, err := s.uc.UpdateContext(ctx, model.ContextID(params.ID), params.Content, params.Metadata.toModel())
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, goerr.Wrap(model.ErrNotFound, "context not found", goerr.V("id", params.ID))
	}
	return jsonResult(c)
}

func (s *Server) deleteContext(ctx context.Context, req *mcp.CallToolRequest, params idParams) (*mcp.CallToolResult, any, error) {
	deleted, err := s.uc.DeleteContext(ctx, model.ContextID(params.ID))
	if err != nil {
		return nil, nil, err
	}
	if !deleted {
		return textResult(fmt.Sprintf("Context %s not found", params.ID))
	}
	return textResult(fmt.Sprintf("Context %s deleted", params.ID))
}

func (s *Server) searchContexts(ctx context.Context, req *mcp.CallToolRequest, params searchContextsParams) (*mcp.CallToolResult, any, error) {
	results := s.uc.SearchContexts(ctx, contexts.SearchQuery{
		Text:  params.Query,
		Tags:  params.Tags,
		Limit: params.Limit,
	})
	return jsonResult(results)
}

func (s *Server) findSimilar(ctx context.Context, req *mcp.CallToolRequest, params findSimilarParams) (*mcp.CallToolResult, any, error) {
	if params.Query == "" {
		return nil, nil, goerr.Wrap(model.ErrValidation, "query is required")
	}

	matches, err := s.uc.FindSimilar(ctx, params.Query, service.SimilarQuery{
		MinScore:   params.MinScore,
		MaxResults: params.MaxResults,
	})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(matches)
}
