package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

// DefaultMaxAPIBatchSize caps how many texts go into a single API request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder wraps Embedder with logging and batch chunking.
// Transport metrics (requests, duration) are recorded in the transport
// packages; this layer owns request-level logging only.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:  inner,
		logger: logger,
	}
}

// Dimensions reports the inner embedder's vector width.
func (p *InstrumentedEmbedder) Dimensions() int { return p.inner.Dimensions() }

// ModelName reports the inner embedder's model identifier.
func (p *InstrumentedEmbedder) ModelName() string { return p.inner.ModelName() }

// Embed delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("model", p.inner.ModelName()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	if err := result.Validate(p.inner.Dimensions()); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("model", p.inner.ModelName()),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Vector)),
	)

	return result, nil
}

// BatchEmbed splits texts into sub-batches and delegates to the inner embedder.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) ([]domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()

	results, err := p.embedChunked(ctx, texts)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("model", p.inner.ModelName()),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
	)

	return results, nil
}

// embedChunked walks texts in chunks of DefaultMaxAPIBatchSize.
func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) ([]domain.EmbeddingResult, error) {
	results := make([]domain.EmbeddingResult, 0, len(texts))

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		end := offset + DefaultMaxAPIBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[offset:end]

		chunkResults, err := p.inner.BatchEmbed(ctx, chunk)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("model", p.inner.ModelName()),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("batch embed: %w", err)
		}
		if len(chunkResults) != len(chunk) {
			return nil, fmt.Errorf("batch embed: got %d results for %d texts", len(chunkResults), len(chunk))
		}

		results = append(results, chunkResults...)
	}

	return results, nil
}
