// Package embedding selects and decorates embedding providers.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/config"
	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/ratelimit"
	"github.com/ashokbr78/qdrant-mcp-server/internal/transport/cohere"
	"github.com/ashokbr78/qdrant-mcp-server/internal/transport/ollama"
	"github.com/ashokbr78/qdrant-mcp-server/internal/transport/openai"
	"github.com/ashokbr78/qdrant-mcp-server/internal/transport/voyage"
)

// Provider kinds. A closed set: adding one is a compile-visible change here
// and in NewProvider.
const (
	KindOllama = "ollama"
	KindOpenAI = "openai"
	KindCohere = "cohere"
	KindVoyage = "voyage"
)

// NewProvider constructs the embedding provider selected by cfg.Kind.
// Cloud kinds fail with ErrMissingCredential when no API key is configured;
// unknown kinds fail with ErrUnknownProvider. Only the ollama kind touches
// the network at construction (model presence check on the local runtime).
func NewProvider(ctx context.Context, cfg config.ProviderConfig, logger *zap.Logger) (domain.Embedder, error) {
	retry := ratelimit.Policy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}

	switch cfg.Kind {
	case KindOllama:
		emb, err := ollama.NewEmbedder(ctx, &ollama.Config{
			Host:              cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerMinute: cfg.MaxRequestsPerMinute,
			Retry:             retry,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama provider: %w", err)
		}
		return emb, nil

	case KindOpenAI:
		emb, err := openai.NewEmbedder(&openai.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerMinute: cfg.MaxRequestsPerMinute,
			Retry:             retry,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai provider: %w", err)
		}
		return emb, nil

	case KindCohere:
		emb, err := cohere.NewEmbedder(&cohere.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerMinute: cfg.MaxRequestsPerMinute,
			Retry:             retry,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create cohere provider: %w", err)
		}
		return emb, nil

	case KindVoyage:
		emb, err := voyage.NewEmbedder(&voyage.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerMinute: cfg.MaxRequestsPerMinute,
			Retry:             retry,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create voyage provider: %w", err)
		}
		return emb, nil

	default:
		return nil, fmt.Errorf("provider kind %q: %w", cfg.Kind, domain.ErrUnknownProvider)
	}
}
