package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/usecase/store"
)

var (
	findToolName    = "qdrant-find"
	findDescription = "Find stored information relevant to a query. Combines semantic and keyword matching and returns the best hits with their metadata."
)

const defaultFindLimit = 5

// FindInput represents the input arguments for the find tool.
type FindInput struct {
	Query     string            `json:"query" jsonschema:"the search query text"`
	Limit     int               `json:"limit,omitempty" jsonschema:"number of results to return (default: 5)"`
	Filter    map[string]string `json:"filter,omitempty" jsonschema:"optional exact-match metadata filter"`
	DenseOnly bool              `json:"dense_only,omitempty" jsonschema:"skip keyword matching and rank by semantic similarity only"`
}

// FindResult represents a single hit.
type FindResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FindOutput represents the output of the find tool.
type FindOutput struct {
	Query   string       `json:"query"`
	Results []FindResult `json:"results"`
	Count   int          `json:"count"`
}

// handleFind runs a hybrid search over the fusion store.
func (s *Server) handleFind(ctx context.Context, _ *mcp.CallToolRequest, input FindInput) (*mcp.CallToolResult, FindOutput, error) {
	logger := s.config.Logger

	limit := input.Limit
	if limit <= 0 {
		limit = defaultFindLimit
	}

	logger.Debug("MCP find request",
		zap.String("query", input.Query),
		zap.Int("limit", limit),
	)

	hits, err := s.config.Store.Search(ctx, store.SearchRequest{
		Query:     input.Query,
		Limit:     limit,
		Filter:    input.Filter,
		DenseOnly: input.DenseOnly,
	})
	if err != nil {
		logger.Error("failed to search", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to search: %v", err)), FindOutput{}, nil
	}

	results := make([]FindResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, toFindResult(hit))
	}

	output := FindOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal find output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), FindOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// toFindResult lifts the reserved payload keys out of the metadata map.
func toFindResult(hit domain.FusedHit) FindResult {
	res := FindResult{
		ID:    hit.ID,
		Score: hit.Score,
	}

	metadata := make(map[string]any, len(hit.Payload))
	for k, v := range hit.Payload {
		switch k {
		case domain.PayloadKeyText:
			res.Text, _ = v.(string)
		case domain.PayloadKeyID:
			if original, ok := v.(string); ok {
				res.ID = original
			}
		default:
			metadata[k] = v
		}
	}
	if len(metadata) > 0 {
		res.Metadata = metadata
	}
	return res
}
