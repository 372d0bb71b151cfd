// Package openai is the embedding provider for the OpenAI API and
// OpenAI-compatible endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/metrics"
	"github.com/ashokbr78/qdrant-mcp-server/internal/ratelimit"
)

const providerName = "openai"

// Embedder is an embedding provider using the OpenAI API.
type Embedder struct {
	client *openai.Client
	caller *ratelimit.Caller
	model  openai.EmbeddingModel
	dims   int
	logger *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	RequestsPerMinute int
	Retry             ratelimit.Policy
	Logger            *zap.Logger
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates an OpenAI embedding provider. No network I/O happens
// at construction.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key: %w", domain.ErrMissingCredential)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		caller: ratelimit.New(cfg.RequestsPerMinute, cfg.Retry, logger),
		model:  openai.EmbeddingModel(cfg.Model),
		dims:   cfg.Dimensions,
		logger: logger,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if text == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("empty text: %w", domain.ErrInvalidInput)
	}
	results, err := e.embed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return results[0], nil
}

// BatchEmbed embeds all texts in one API call. The API may return items out
// of order; they are re-sorted by their index so output order matches input
// order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("empty text at index %d: %w", i, domain.ErrInvalidInput)
		}
	}
	return e.embed(ctx, texts)
}

// Dimensions returns the configured vector dimensionality.
func (e *Embedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *Embedder) ModelName() string { return string(e.model) }

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dims > 0 {
		req.Dimensions = e.dims
	}

	start := time.Now()

	var resp openai.EmbeddingResponse
	err := e.caller.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(ctx, req)
		return classifyAPIError(callErr)
	})

	metrics.ObserveEmbedding(providerName, string(e.model), time.Since(start), err)

	if err != nil {
		if ratelimit.IsExhausted(err) {
			return nil, fmt.Errorf("openai embed: %w: %w", err, domain.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// Re-order by the response index field, not slice position.
	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	results := make([]domain.EmbeddingResult, len(data))
	for i, d := range data {
		if e.dims > 0 && len(d.Embedding) != e.dims {
			return nil, fmt.Errorf("openai returned %d-dimensional vector, want %d: %w",
				len(d.Embedding), e.dims, domain.ErrDimensionMismatch)
		}
		results[i] = domain.EmbeddingResult{
			Vector:     d.Embedding,
			Dimensions: len(d.Embedding),
			Model:      string(e.model),
		}
	}
	return results, nil
}

// classifyAPIError keeps 429 and 5xx transient for retry and marks other
// API failures permanent. Plain transport errors stay transient.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if transientStatus(reqErr.HTTPStatusCode) {
			return err
		}
		return ratelimit.Permanent(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.HTTPStatusCode) {
			return err
		}
		return ratelimit.Permanent(err)
	}

	return err
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
