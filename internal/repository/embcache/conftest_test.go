package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/db"
	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	results := make([]domain.EmbeddingResult, len(texts))
	for i := range texts {
		results[i] = m.result
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int   { return len(m.result.Vector) }
func (m *mockEmbedder) ModelName() string { return "mock-model" }

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, nil, zap.NewNop())
	return ce, ms
}
