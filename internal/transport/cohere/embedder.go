// Package cohere is the embedding provider for the Cohere v2 API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/metrics"
	"github.com/ashokbr78/qdrant-mcp-server/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public Cohere API endpoint.
	DefaultBaseURL = "https://api.cohere.com"

	providerName = "cohere"

	// inputType tells Cohere the embedding use case. Documents and queries
	// share one setting here so stored and query vectors live in one space.
	inputType = "search_document"
)

// Embedder is an embedding provider using the Cohere API.
type Embedder struct {
	client  *http.Client
	caller  *ratelimit.Caller
	baseURL string
	apiKey  string
	model   string
	dims    int
	logger  *zap.Logger
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

// NewEmbedder creates a Cohere embedding provider. No network I/O happens at
// construction.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere api key: %w", domain.ErrMissingCredential)
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:  &http.Client{},
		caller:  ratelimit.New(cfg.RequestsPerMinute, cfg.Retry, logger),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		logger:  logger,
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

// BatchEmbed embeds all texts in one API call, preserving input order.
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
func (e *Embedder) ModelName() string { return e.model }

type embedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type embedResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	start := time.Now()

	var resp embedResponse
	err := e.caller.Do(ctx, func(ctx context.Context) error {
		return e.postEmbed(ctx, texts, &resp)
	})

	metrics.ObserveEmbedding(providerName, e.model, time.Since(start), err)

	if err != nil {
		if ratelimit.IsExhausted(err) {
			return nil, fmt.Errorf("cohere embed: %w: %w", err, domain.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("cohere embed: %w", err)
	}

	vectors := resp.Embeddings.Float
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("cohere returned %d embeddings for %d inputs", len(vectors), len(texts))
	}

	results := make([]domain.EmbeddingResult, len(vectors))
	for i, vec := range vectors {
		if e.dims > 0 && len(vec) != e.dims {
			return nil, fmt.Errorf("cohere returned %d-dimensional vector, want %d: %w",
				len(vec), e.dims, domain.ErrDimensionMismatch)
		}
		results[i] = domain.EmbeddingResult{Vector: vec, Dimensions: len(vec), Model: e.model}
	}
	return results, nil
}

func (e *Embedder) postEmbed(ctx context.Context, texts []string, out *embedResponse) error {
	body, err := json.Marshal(embedRequest{
		Model:          e.model,
		Texts:          texts,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
	})
	if err != nil {
		return ratelimit.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v2/embed", bytes.NewReader(body))
	if err != nil {
		return ratelimit.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("cohere request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := fmt.Errorf("cohere status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if transientStatus(resp.StatusCode) {
			return httpErr
		}
		return ratelimit.Permanent(httpErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ratelimit.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
