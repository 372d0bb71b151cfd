// Package ollama is the local embedding provider, talking to an Ollama
// runtime over its HTTP API. Unlike the cloud providers it needs no API key,
// but it verifies at construction that the configured model is actually
// pulled: a missing model is a fatal configuration error, not something to
// retry per call.
package ollama

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
	// DefaultHost is the standard local Ollama endpoint.
	DefaultHost = "http://localhost:11434"

	providerName = "ollama"

	connectTimeout = 10 * time.Second
)

// Embedder generates embeddings via a local Ollama runtime.
type Embedder struct {
	client *http.Client
	caller *ratelimit.Caller
	host   string
	model  string
	dims   int
	logger *zap.Logger
}

// Config holds the local provider settings.
type Config struct {
	Host              string
	Model             string
	Dimensions        int
	RequestsPerMinute int
	Retry             ratelimit.Policy
	Logger            *zap.Logger
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates the local provider and checks that the model is
// present on the runtime.
func NewEmbedder(ctx context.Context, cfg *Config) (*Embedder, error) {
	host := strings.TrimSuffix(cfg.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Embedder{
		client: &http.Client{},
		caller: ratelimit.New(cfg.RequestsPerMinute, cfg.Retry, logger),
		host:   host,
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		logger: logger,
	}

	checkCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := e.checkModelPresent(checkCtx); err != nil {
		return nil, err
	}

	return e, nil
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

// BatchEmbed embeds all texts in a single runtime call, preserving input
// order. A single failing item fails the whole batch.
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

// HealthCheck verifies the runtime responds.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.listModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
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
			return nil, fmt.Errorf("ollama embed: %w: %w", err, domain.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	results := make([]domain.EmbeddingResult, len(texts))
	for i, vec := range resp.Embeddings {
		if len(vec) != e.dims {
			return nil, fmt.Errorf("ollama returned %d-dimensional vector, want %d: %w",
				len(vec), e.dims, domain.ErrDimensionMismatch)
		}
		results[i] = domain.EmbeddingResult{Vector: vec, Dimensions: len(vec), Model: e.model}
	}
	return results, nil
}

// postEmbed issues one /api/embed call. Connection errors and 5xx are left
// transient for the caller to retry; other HTTP failures are permanent.
func (e *Embedder) postEmbed(ctx context.Context, texts []string, out *embedResponse) error {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return ratelimit.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return ratelimit.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
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

type modelListResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (e *Embedder) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to ollama at %s: %w", e.host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama status %d", resp.StatusCode)
	}

	var list modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	names := make([]string, len(list.Models))
	for i, m := range list.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (e *Embedder) checkModelPresent(ctx context.Context) error {
	names, err := e.listModels(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		// Ollama reports "model:tag"; the config may omit the tag.
		if name == e.model || strings.TrimSuffix(name, ":latest") == e.model {
			return nil
		}
	}
	return fmt.Errorf("model %q is not pulled on %s (try `ollama pull %s`): %w",
		e.model, e.host, e.model, domain.ErrModelNotFound)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
