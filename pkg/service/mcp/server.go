// Package mcp exposes the memory and history stores as MCP tools over
// stdio, so any MCP-capable agent can remember and recall facts.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/history"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type rememberParams struct {
	Text string `json:"text"`
}

type recallParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type loadHistoryParams struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// Server wraps the stores behind MCP tools.
type Server struct {
	memories *memory.Store
	history  *history.Store
	server   *mcp.Server
}

func New(memories *memory.Store, historyStore *history.Store, version string) *Server {
	s := &Server{
		memories: memories,
		history:  historyStore,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "engram",
		Version: version,
	}, nil)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "remember",
		Description: "Store a fact in long-term memory",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text": {Type: "string", Description: "The fact to remember"},
			},
			Required: []string{"text"},
		},
	}, s.remember)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recall",
		Description: "Retrieve the facts most semantically relevant to a query",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Natural language query"},
				"limit": {Type: "integer", Description: "Maximum number of facts to return (default 5)"},
			},
			Required: []string{"query"},
		},
	}, s.recall)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "load_history",
		Description: "Load the chat transcript of a user session in chronological order",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"user_id": {Type: "string", Description: "Session identifier"},
				"limit":   {Type: "integer", Description: "Return at most the earliest N turns"},
			},
			Required: []string{"user_id"},
		},
	}, s.loadHistory)

	return s
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) remember(ctx context.Context, req *mcp.CallToolRequest, params *rememberParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Text) == "" {
		return nil, nil, goerr.New("text is required")
	}

	if err := s.memories.Add(ctx, params.Text); err != nil {
		return nil, nil, err
	}

	return textResult("Remembered: " + params.Text), nil, nil
}

func (s *Server) recall(ctx context.Context, req *mcp.CallToolRequest, params *recallParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, nil, goerr.New("query is required")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 5
	}

	results, err := s.memories.Search(ctx, params.Query, limit)
	if err != nil {
		return nil, nil, err
	}

	if len(results) == 0 {
		return textResult("No relevant memories found"), nil, nil
	}

	var sb strings.Builder
	for i, text := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, text)
	}
	return textResult(sb.String()), nil, nil
}

func (s *Server) loadHistory(ctx context.Context, req *mcp.CallToolRequest, params *loadHistoryParams) (*mcp.CallToolResult, any, error) {
	if params.UserID == "" {
		return nil, nil, goerr.New("user_id is required")
	}

	turns, err := s.history.LoadHistory(ctx, model.UserID(params.UserID), params.Limit)
	if err != nil {
		return nil, nil, err
	}

	if len(turns) == 0 {
		return textResult("No messages in this session"), nil, nil
	}

	var sb strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&sb, "[%s] %s\n", turn.Role, turn.Text)
	}
	return textResult(sb.String()), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
