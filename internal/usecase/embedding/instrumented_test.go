package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

type mockEmbedder struct {
	embedCalls [][]string
	dims       int
	err        error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.embedCalls = append(m.embedCalls, []string{text})
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Vector: make([]float32, m.dims), Dimensions: m.dims, Model: "mock"}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	m.embedCalls = append(m.embedCalls, texts)
	if m.err != nil {
		return nil, m.err
	}
	results := make([]domain.EmbeddingResult, len(texts))
	for i := range texts {
		results[i] = domain.EmbeddingResult{Vector: make([]float32, m.dims), Dimensions: m.dims, Model: "mock"}
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int   { return m.dims }
func (m *mockEmbedder) ModelName() string { return "mock" }

func TestInstrumented_Embed(t *testing.T) {
	inner := &mockEmbedder{dims: 4}
	emb := NewInstrumentedEmbedder(inner, zap.NewNop())

	res, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vector) != 4 {
		t.Errorf("expected 4-dim vector, got %d", len(res.Vector))
	}
	if emb.Dimensions() != 4 {
		t.Errorf("expected Dimensions passthrough of 4, got %d", emb.Dimensions())
	}
	if emb.ModelName() != "mock" {
		t.Errorf("expected ModelName passthrough, got %q", emb.ModelName())
	}
}

func TestInstrumented_EmbedError(t *testing.T) {
	boom := errors.New("boom")
	inner := &mockEmbedder{dims: 4, err: boom}
	emb := NewInstrumentedEmbedder(inner, zap.NewNop())

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
}

func TestInstrumented_EmbedDimensionMismatch(t *testing.T) {
	inner := &badDimsEmbedder{mockEmbedder{dims: 4}}
	emb := NewInstrumentedEmbedder(inner, zap.NewNop())

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

// badDimsEmbedder reports 4 dimensions but returns 3-length vectors.
type badDimsEmbedder struct {
	mockEmbedder
}

func (b *badDimsEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Vector: make([]float32, 3), Dimensions: 3, Model: "mock"}, nil
}

func TestInstrumented_BatchEmbedEmpty(t *testing.T) {
	inner := &mockEmbedder{dims: 4}
	emb := NewInstrumentedEmbedder(inner, zap.NewNop())

	results, err := emb.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if len(inner.embedCalls) != 0 {
		t.Errorf("expected no inner calls, got %d", len(inner.embedCalls))
	}
}

func TestInstrumented_BatchEmbedChunks(t *testing.T) {
	inner := &mockEmbedder{dims: 4}
	emb := NewInstrumentedEmbedder(inner, zap.NewNop())

	texts := make([]string, DefaultMaxAPIBatchSize+10)
	for i := range texts {
		texts[i] = "text"
	}

	results, err := emb.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	if len(inner.embedCalls) != 2 {
		t.Fatalf("expected 2 chunked calls, got %d", len(inner.embedCalls))
	}
	if len(inner.embedCalls[0]) != DefaultMaxAPIBatchSize {
		t.Errorf("expected first chunk of %d, got %d", DefaultMaxAPIBatchSize, len(inner.embedCalls[0]))
	}
	if len(inner.embedCalls[1]) != 10 {
		t.Errorf("expected second chunk of 10, got %d", len(inner.embedCalls[1]))
	}
}
