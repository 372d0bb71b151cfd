package store

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

type mockRepo struct {
	upsertFn       func(ctx context.Context, docs []domain.Document) error
	deleteFn       func(ctx context.Context, ids []string) error
	getPayloadFn   func(ctx context.Context, id string) (map[string]any, bool, error)
	searchDenseFn  func(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]domain.SearchHit, error)
	searchSparseFn func(ctx context.Context, sparse domain.SparseVector, limit int, filter map[string]string) ([]domain.SearchHit, error)
}

func (m *mockRepo) Upsert(ctx context.Context, docs []domain.Document) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, docs)
	}
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, ids []string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ids)
	}
	return nil
}

func (m *mockRepo) GetPayload(ctx context.Context, id string) (map[string]any, bool, error) {
	if m.getPayloadFn != nil {
		return m.getPayloadFn(ctx, id)
	}
	return nil, false, nil
}

func (m *mockRepo) SearchDense(
	ctx context.Context, vector []float32, limit int, filter map[string]string,
) ([]domain.SearchHit, error) {
	if m.searchDenseFn != nil {
		return m.searchDenseFn(ctx, vector, limit, filter)
	}
	return nil, nil
}

func (m *mockRepo) SearchSparse(
	ctx context.Context, sparse domain.SparseVector, limit int, filter map[string]string,
) ([]domain.SearchHit, error) {
	if m.searchSparseFn != nil {
		return m.searchSparseFn(ctx, sparse, limit, filter)
	}
	return nil, nil
}

type mockEmbedder struct {
	dims       int
	err        error
	embedCalls int
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Vector: make([]float32, m.dims), Dimensions: m.dims}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	m.batchCalls++
	if m.err != nil {
		return nil, m.err
	}
	results := make([]domain.EmbeddingResult, len(texts))
	for i := range texts {
		results[i] = domain.EmbeddingResult{Vector: make([]float32, m.dims), Dimensions: m.dims}
	}
	return results, nil
}

// mockEncoder hashes each whitespace-separated token to a fixed weight.
type mockEncoder struct {
	empty bool
}

func (m *mockEncoder) Encode(text string) domain.SparseVector {
	if m.empty || text == "" {
		return nil
	}
	return domain.SparseVector{uint32(len(text)): 1.0}
}

func newTestService(t *testing.T, repo *mockRepo, emb *mockEmbedder, enc *mockEncoder) *Service {
	t.Helper()
	if repo == nil {
		repo = &mockRepo{}
	}
	if emb == nil {
		emb = &mockEmbedder{dims: 4}
	}
	if enc == nil {
		enc = &mockEncoder{}
	}
	return New(repo, emb, enc, DefaultFusionK, zap.NewNop())
}
