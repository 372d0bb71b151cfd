package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/usecase/store"
)

var (
	storeToolName    = "qdrant-store"
	storeDescription = "Store a piece of information with optional metadata for later retrieval. Returns the point ID under which it was stored."
)

// StoreInput represents the input arguments for the store tool.
type StoreInput struct {
	Information string         `json:"information" jsonschema:"the text to store"`
	ID          string         `json:"id,omitempty" jsonschema:"optional identifier; re-storing the same id overwrites the entry"`
	Metadata    map[string]any `json:"metadata,omitempty" jsonschema:"optional metadata to attach to the stored entry"`
}

// StoreOutput represents the output of the store tool.
type StoreOutput struct {
	ID string `json:"id"`
}

// handleStore writes one document into the fusion store.
func (s *Server) handleStore(ctx context.Context, _ *mcp.CallToolRequest, input StoreInput) (*mcp.CallToolResult, StoreOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP store request",
		zap.String("id", input.ID),
		zap.Int("text_len", len(input.Information)),
	)

	ids, err := s.config.Store.Upsert(ctx, []store.UpsertItem{{
		ID:      input.ID,
		Text:    input.Information,
		Payload: input.Metadata,
	}})
	if err != nil {
		logger.Error("failed to store information", zap.Error(err))
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return toolError("Nothing to store: the information field is empty."), StoreOutput{}, nil
		case errors.Is(err, domain.ErrIdentifierCollision):
			return toolError(fmt.Sprintf("Identifier conflict: %v", err)), StoreOutput{}, nil
		default:
			return toolError(fmt.Sprintf("Failed to store information: %v", err)), StoreOutput{}, nil
		}
	}

	output := StoreOutput{ID: ids[0]}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Stored under point %s", ids[0])},
		},
	}, output, nil
}
