// Package voyage is the embedding provider for the Voyage AI API.
package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/metrics"
	"github.com/ashokbr78/qdrant-mcp-server/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public Voyage AI endpoint.
	DefaultBaseURL = "https://api.voyageai.com"

	providerName = "voyage"
)

// Embedder is an embedding provider using the Voyage AI API.
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

// NewEmbedder creates a Voyage embedding provider. No network I/O happens at
// construction.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voyage api key: %w", domain.ErrMissingCredential)
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

// BatchEmbed embeds all texts in one API call. Response items carry an index
// field and are re-sorted so output order matches input order.
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
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embedResponse struct {
	Data []embedItem `json:"data"`
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
			return nil, fmt.Errorf("voyage embed: %w: %w", err, domain.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("voyage embed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("voyage returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := make([]embedItem, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	results := make([]domain.EmbeddingResult, len(data))
	for i, d := range data {
		if e.dims > 0 && len(d.Embedding) != e.dims {
			return nil, fmt.Errorf("voyage returned %d-dimensional vector, want %d: %w",
				len(d.Embedding), e.dims, domain.ErrDimensionMismatch)
		}
		results[i] = domain.EmbeddingResult{Vector: d.Embedding, Dimensions: len(d.Embedding), Model: e.model}
	}
	return results, nil
}

func (e *Embedder) postEmbed(ctx context.Context, texts []string, out *embedResponse) error {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return ratelimit.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return ratelimit.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("voyage request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := fmt.Errorf("voyage status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
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
