package store

import (
	"context"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

// PointsRepo defines the storage contract for fusion store operations.
type PointsRepo interface {
	Upsert(ctx context.Context, docs []domain.Document) error
	Delete(ctx context.Context, ids []string) error
	GetPayload(ctx context.Context, id string) (map[string]any, bool, error)
	SearchDense(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]domain.SearchHit, error)
	SearchSparse(ctx context.Context, sparse domain.SparseVector, limit int, filter map[string]string) ([]domain.SearchHit, error)
}

// Embedder vectorizes text into dense embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error)
}

// SparseEncoder turns text into a term-weighted sparse vector.
type SparseEncoder interface {
	Encode(text string) domain.SparseVector
}
