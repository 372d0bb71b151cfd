// Package mcp exposes the fusion store over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/usecase/store"
	"github.com/ashokbr78/qdrant-mcp-server/internal/version"
)

// FusionStore is the consumer interface over the store usecase (ISP).
type FusionStore interface {
	Upsert(ctx context.Context, items []store.UpsertItem) ([]string, error)
	Search(ctx context.Context, req store.SearchRequest) ([]domain.FusedHit, error)
	Delete(ctx context.Context, ids []string) error
}

// Config wires the MCP server dependencies.
type Config struct {
	Store  FusionStore
	Logger *zap.Logger
}

// Server owns the MCP tool registrations and the stdio loop.
type Server struct {
	config    Config
	mcpServer *mcp.Server
}

// NewServer creates an MCP server with the store, find, and delete tools.
func NewServer(c Config) (*Server, error) {
	if c.Store == nil {
		return nil, errors.New("fusion store is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "qdrant-mcp-server",
			Version: version.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        storeToolName,
		Description: storeDescription,
	}, s.handleStore)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        findToolName,
		Description: findDescription,
	}, s.handleFind)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        deleteToolName,
		Description: deleteDescription,
	}, s.handleDelete)

	s.mcpServer = mcpServer
	return s, nil
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// toolError builds a protocol-level error result so the client sees the
// failure as tool output rather than a transport fault.
func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
