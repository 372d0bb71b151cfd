package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	deleteToolName    = "qdrant-delete"
	deleteDescription = "Delete stored entries by their identifiers. Deleting an absent identifier is not an error."
)

// DeleteInput represents the input arguments for the delete tool.
type DeleteInput struct {
	IDs []string `json:"ids" jsonschema:"identifiers of the entries to delete"`
}

// DeleteOutput represents the output of the delete tool.
type DeleteOutput struct {
	Deleted int `json:"deleted"`
}

// handleDelete removes entries from the fusion store.
func (s *Server) handleDelete(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (*mcp.CallToolResult, DeleteOutput, error) {
	logger := s.config.Logger

	if len(input.IDs) == 0 {
		return toolError("Nothing to delete: the ids field is empty."), DeleteOutput{}, nil
	}

	logger.Debug("MCP delete request", zap.Int("count", len(input.IDs)))

	if err := s.config.Store.Delete(ctx, input.IDs); err != nil {
		logger.Error("failed to delete entries", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to delete: %v", err)), DeleteOutput{}, nil
	}

	output := DeleteOutput{Deleted: len(input.IDs)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Deleted %d entries", len(input.IDs))},
		},
	}, output, nil
}
