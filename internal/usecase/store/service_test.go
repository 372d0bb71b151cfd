package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

func TestUpsert_NormalizesAndEnriches(t *testing.T) {
	var stored []domain.Document
	repo := &mockRepo{
		upsertFn: func(_ context.Context, docs []domain.Document) error {
			stored = docs
			return nil
		},
	}
	emb := &mockEmbedder{dims: 4}
	svc := newTestService(t, repo, emb, &mockEncoder{})

	ids, err := svc.Upsert(context.Background(), []UpsertItem{
		{ID: "doc-1", Text: "the quick brown fox", Payload: map[string]any{"source": "wiki"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id, got %d", len(ids))
	}
	if ids[0] != NormalizeID("doc-1") {
		t.Errorf("expected normalized id, got %q", ids[0])
	}
	if _, err := uuid.Parse(ids[0]); err != nil {
		t.Errorf("expected UUID id, got %q", ids[0])
	}

	if len(stored) != 1 {
		t.Fatalf("expected 1 stored doc, got %d", len(stored))
	}
	doc := stored[0]
	if len(doc.Dense) != 4 {
		t.Errorf("expected computed dense vector, got %v", doc.Dense)
	}
	if len(doc.Sparse) == 0 {
		t.Error("expected computed sparse vector")
	}
	if doc.Payload[domain.PayloadKeyID] != "doc-1" {
		t.Errorf("expected original id in payload, got %v", doc.Payload[domain.PayloadKeyID])
	}
	if doc.Payload[domain.PayloadKeyText] != "the quick brown fox" {
		t.Errorf("expected text in payload, got %v", doc.Payload[domain.PayloadKeyText])
	}
	if doc.Payload["source"] != "wiki" {
		t.Errorf("expected caller payload preserved, got %v", doc.Payload["source"])
	}
	if emb.batchCalls != 1 {
		t.Errorf("expected a single batch embed call, got %d", emb.batchCalls)
	}
}

func TestUpsert_EmptyText(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	_, err := svc.Upsert(context.Background(), []UpsertItem{{ID: "doc-1"}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpsert_BlankIDGetsFreshIdentity(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	first, err := svc.Upsert(context.Background(), []UpsertItem{{Text: "alpha"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Upsert(context.Background(), []UpsertItem{{Text: "alpha"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0] == second[0] {
		t.Error("expected distinct ids for blank-id upserts")
	}
}

func TestUpsert_SameIDOverwrites(t *testing.T) {
	pointID := NormalizeID("doc-1")
	repo := &mockRepo{
		getPayloadFn: func(_ context.Context, id string) (map[string]any, bool, error) {
			if id != pointID {
				t.Errorf("unexpected lookup id %q", id)
			}
			return map[string]any{domain.PayloadKeyID: "doc-1"}, true, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	_, err := svc.Upsert(context.Background(), []UpsertItem{{ID: "doc-1", Text: "updated"}})
	if err != nil {
		t.Fatalf("expected overwrite of same id to succeed, got %v", err)
	}
}

func TestUpsert_IdentifierCollision(t *testing.T) {
	repo := &mockRepo{
		getPayloadFn: func(_ context.Context, _ string) (map[string]any, bool, error) {
			return map[string]any{domain.PayloadKeyID: "other-doc"}, true, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	_, err := svc.Upsert(context.Background(), []UpsertItem{{ID: "doc-1", Text: "text"}})
	if !errors.Is(err, domain.ErrIdentifierCollision) {
		t.Fatalf("expected ErrIdentifierCollision, got %v", err)
	}
}

func TestUpsert_EmbedderError(t *testing.T) {
	boom := errors.New("provider down")
	svc := newTestService(t, nil, &mockEmbedder{err: boom}, nil)

	_, err := svc.Upsert(context.Background(), []UpsertItem{{ID: "doc-1", Text: "text"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected embedder error, got %v", err)
	}
}

func TestDelete_NormalizesIDs(t *testing.T) {
	var deleted []string
	repo := &mockRepo{
		deleteFn: func(_ context.Context, ids []string) error {
			deleted = ids
			return nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	if err := svc.Delete(context.Background(), []string{"doc-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != NormalizeID("doc-1") {
		t.Errorf("expected normalized delete ids, got %v", deleted)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	svc := newTestService(t, &mockRepo{}, nil, nil)

	for i := 0; i < 2; i++ {
		if err := svc.Delete(context.Background(), []string{"absent"}); err != nil {
			t.Fatalf("expected delete of absent id to succeed, got %v", err)
		}
	}
}

func TestDelete_Empty(t *testing.T) {
	called := false
	repo := &mockRepo{
		deleteFn: func(_ context.Context, _ []string) error {
			called = true
			return nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	if err := svc.Delete(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected no store call for empty input")
	}
}

func TestSearch_HybridFusesBothBranches(t *testing.T) {
	var denseLimit, sparseLimit int
	repo := &mockRepo{
		searchDenseFn: func(_ context.Context, _ []float32, limit int, _ map[string]string) ([]domain.SearchHit, error) {
			denseLimit = limit
			return makeHits("a", "b"), nil
		},
		searchSparseFn: func(_ context.Context, _ domain.SparseVector, limit int, _ map[string]string) ([]domain.SearchHit, error) {
			sparseLimit = limit
			return makeHits("b", "c"), nil
		},
	}
	svc := newTestService(t, repo, nil, &mockEncoder{})

	hits, err := svc.Search(context.Background(), SearchRequest{Query: "quick fox", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 fused hits, got %d", len(hits))
	}
	// "b" appears in both lists and wins
	if hits[0].ID != "b" {
		t.Errorf("expected 'b' first, got %s", hits[0].ID)
	}
	if denseLimit != 20 || sparseLimit != 20 {
		t.Errorf("expected overfetched branch limits of 20, got dense=%d sparse=%d", denseLimit, sparseLimit)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	_, err := svc.Search(context.Background(), SearchRequest{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearch_DenseOnlyWhenNoSparseTerms(t *testing.T) {
	sparseCalled := false
	repo := &mockRepo{
		searchDenseFn: func(_ context.Context, _ []float32, limit int, _ map[string]string) ([]domain.SearchHit, error) {
			if limit != 5 {
				t.Errorf("expected un-overfetched limit 5 in dense mode, got %d", limit)
			}
			return makeHits("a"), nil
		},
		searchSparseFn: func(_ context.Context, _ domain.SparseVector, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			sparseCalled = true
			return nil, nil
		},
	}
	svc := newTestService(t, repo, nil, &mockEncoder{empty: true})

	hits, err := svc.Search(context.Background(), SearchRequest{Query: "the of and", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sparseCalled {
		t.Error("expected sparse branch to be skipped")
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("expected pass-through dense hits, got %v", hits)
	}
}

func TestSearch_DenseOnlyFlag(t *testing.T) {
	sparseCalled := false
	repo := &mockRepo{
		searchDenseFn: func(_ context.Context, _ []float32, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			return makeHits("a"), nil
		},
		searchSparseFn: func(_ context.Context, _ domain.SparseVector, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			sparseCalled = true
			return nil, nil
		},
	}
	svc := newTestService(t, repo, nil, &mockEncoder{})

	_, err := svc.Search(context.Background(), SearchRequest{Query: "quick fox", DenseOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sparseCalled {
		t.Error("expected sparse branch to be skipped with DenseOnly")
	}
}

func TestSearch_BranchErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	repo := &mockRepo{
		searchSparseFn: func(_ context.Context, _ domain.SparseVector, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			return nil, boom
		},
	}
	svc := newTestService(t, repo, nil, &mockEncoder{})

	_, err := svc.Search(context.Background(), SearchRequest{Query: "quick fox"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected branch error, got %v", err)
	}
}

func TestSearch_SlowBranchCancelledOnFailure(t *testing.T) {
	boom := errors.New("store down")
	repo := &mockRepo{
		searchDenseFn: func(ctx context.Context, _ []float32, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return makeHits("a"), nil
			}
		},
		searchSparseFn: func(_ context.Context, _ domain.SparseVector, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			return nil, boom
		},
	}
	svc := newTestService(t, repo, nil, &mockEncoder{})

	start := time.Now()
	_, err := svc.Search(context.Background(), SearchRequest{Query: "quick fox"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sparse branch error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("expected the dense branch to be cancelled promptly")
	}
}

func TestSearch_FilterPassedToBothBranches(t *testing.T) {
	var denseFilter, sparseFilter map[string]string
	repo := &mockRepo{
		searchDenseFn: func(_ context.Context, _ []float32, _ int, filter map[string]string) ([]domain.SearchHit, error) {
			denseFilter = filter
			return nil, nil
		},
		searchSparseFn: func(_ context.Context, _ domain.SparseVector, _ int, filter map[string]string) ([]domain.SearchHit, error) {
			sparseFilter = filter
			return nil, nil
		},
	}
	svc := newTestService(t, repo, nil, &mockEncoder{})

	filter := map[string]string{"source": "wiki"}
	_, err := svc.Search(context.Background(), SearchRequest{Query: "quick fox", Filter: filter})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if denseFilter["source"] != "wiki" || sparseFilter["source"] != "wiki" {
		t.Errorf("expected filter on both branches, got dense=%v sparse=%v", denseFilter, sparseFilter)
	}
}

func TestSearch_RoundTrip(t *testing.T) {
	// Upsert then find the same document through an in-memory repo.
	points := map[string]domain.Document{}
	repo := &mockRepo{
		upsertFn: func(_ context.Context, docs []domain.Document) error {
			for _, d := range docs {
				points[d.ID] = d
			}
			return nil
		},
		searchDenseFn: func(_ context.Context, _ []float32, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			var hits []domain.SearchHit
			for id, d := range points {
				hits = append(hits, domain.SearchHit{ID: id, Score: 0.9, Rank: len(hits) + 1, Payload: d.Payload})
			}
			return hits, nil
		},
		searchSparseFn: func(_ context.Context, _ domain.SparseVector, _ int, _ map[string]string) ([]domain.SearchHit, error) {
			return nil, nil
		},
	}
	svc := newTestService(t, repo, nil, &mockEncoder{})

	ids, err := svc.Upsert(context.Background(), []UpsertItem{{ID: "doc-1", Text: "round trip"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hits, err := svc.Search(context.Background(), SearchRequest{Query: "round trip"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != ids[0] {
		t.Fatalf("expected the stored doc back, got %v", hits)
	}
	if hits[0].Payload[domain.PayloadKeyID] != "doc-1" {
		t.Errorf("expected original id in hit payload, got %v", hits[0].Payload)
	}
}
