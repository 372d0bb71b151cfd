// Package store implements the fusion store: hybrid dense plus sparse
// retrieval over a single point collection.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/metrics"
)

const (
	defaultSearchLimit = 10

	// overfetchFactor widens each branch so fusion has enough candidates
	// beyond the requested page.
	overfetchFactor = 2
)

// UpsertItem is one document to store. A blank ID gets a random identity;
// anything else is normalized deterministically.
type UpsertItem struct {
	ID      string
	Text    string
	Payload map[string]any
}

// SearchRequest describes one retrieval call.
type SearchRequest struct {
	Query     string
	Limit     int
	Filter    map[string]string
	DenseOnly bool
}

// Service handles document storage and hybrid retrieval.
type Service struct {
	repo    PointsRepo
	embed   Embedder
	encoder SparseEncoder
	fusionK int
	logger  *zap.Logger
}

// New creates a fusion store service. fusionK <= 0 falls back to
// DefaultFusionK.
func New(repo PointsRepo, embed Embedder, encoder SparseEncoder, fusionK int, logger *zap.Logger) *Service {
	if fusionK <= 0 {
		fusionK = DefaultFusionK
	}
	return &Service{
		repo:    repo,
		embed:   embed,
		encoder: encoder,
		fusionK: fusionK,
		logger:  logger,
	}
}

// Upsert normalizes identifiers, computes missing vectors, and writes
// documents as points. Returns the normalized IDs in input order.
func (s *Service) Upsert(ctx context.Context, items []UpsertItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	docs := make([]domain.Document, len(items))
	ids := make([]string, len(items))
	texts := make([]string, len(items))

	for i, item := range items {
		if item.Text == "" {
			return nil, fmt.Errorf("item %d: empty text: %w", i, domain.ErrInvalidInput)
		}

		originalID := item.ID
		if originalID == "" {
			originalID = NewID()
		}
		pointID := NormalizeID(originalID)

		if err := s.checkCollision(ctx, pointID, originalID); err != nil {
			return nil, err
		}

		payload := make(map[string]any, len(item.Payload)+2)
		for k, v := range item.Payload {
			payload[k] = v
		}
		payload[domain.PayloadKeyID] = originalID
		payload[domain.PayloadKeyText] = item.Text

		docs[i] = domain.Document{
			ID:      pointID,
			Text:    item.Text,
			Payload: payload,
			Sparse:  s.encoder.Encode(item.Text),
		}
		ids[i] = pointID
		texts[i] = item.Text
	}

	embeddings, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(embeddings), len(docs))
	}
	for i := range docs {
		docs[i].Dense = embeddings[i].Vector
	}

	if err := s.repo.Upsert(ctx, docs); err != nil {
		return nil, fmt.Errorf("store points: %w", err)
	}

	metrics.StorePointsUpserted.Add(float64(len(docs)))
	s.logger.Debug("Points stored", zap.Int("count", len(docs)))

	return ids, nil
}

// checkCollision rejects a write when the normalized ID is already taken
// by a different caller identifier.
func (s *Service) checkCollision(ctx context.Context, pointID, originalID string) error {
	payload, found, err := s.repo.GetPayload(ctx, pointID)
	if err != nil {
		return fmt.Errorf("check point %s: %w", pointID, err)
	}
	if !found {
		return nil
	}

	stored, ok := payload[domain.PayloadKeyID].(string)
	if ok && stored != originalID {
		return fmt.Errorf("id %q maps to point %s already owned by %q: %w",
			originalID, pointID, stored, domain.ErrIdentifierCollision)
	}
	return nil
}

// Delete removes documents by caller identifier. Absent documents are
// ignored, so retries are safe.
func (s *Service) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = NormalizeID(id)
	}

	if err := s.repo.Delete(ctx, pointIDs); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

// Search runs dense and sparse retrieval in parallel and fuses the ranked
// lists. Falls back to pure dense ranking when the query has no sparse
// terms or DenseOnly is set.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]domain.FusedHit, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	sparseQuery := s.encoder.Encode(req.Query)
	denseOnly := req.DenseOnly || len(sparseQuery) == 0

	mode := "hybrid"
	if denseOnly {
		mode = "dense"
	}

	start := time.Now()
	hits, err := s.search(ctx, req, sparseQuery, denseOnly)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(mode, status).Inc()
	metrics.SearchDuration.WithLabelValues(mode).Observe(duration.Seconds())

	if err != nil {
		return nil, err
	}

	s.logger.Debug("Search completed",
		zap.String("mode", mode),
		zap.Int("hits", len(hits)),
		zap.Duration("duration", duration),
	)
	return hits, nil
}

func (s *Service) search(
	ctx context.Context, req SearchRequest, sparseQuery domain.SparseVector, denseOnly bool,
) ([]domain.FusedHit, error) {
	fetch := req.Limit * overfetchFactor

	if denseOnly {
		denseHits, err := s.searchDense(ctx, req.Query, req.Limit, req.Filter)
		if err != nil {
			return nil, err
		}
		return toFused(denseHits), nil
	}

	var denseHits, sparseHits []domain.SearchHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.searchDense(gctx, req.Query, fetch, req.Filter)
		if err != nil {
			return err
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := s.repo.SearchSparse(gctx, sparseQuery, fetch, req.Filter)
		if err != nil {
			return fmt.Errorf("search sparse: %w", err)
		}
		sparseHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuseRRF(denseHits, sparseHits, s.fusionK, req.Limit), nil
}

func (s *Service) searchDense(
	ctx context.Context, query string, limit int, filter map[string]string,
) ([]domain.SearchHit, error) {
	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.repo.SearchDense(ctx, embResult.Vector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("search dense: %w", err)
	}
	return hits, nil
}

func toFused(hits []domain.SearchHit) []domain.FusedHit {
	out := make([]domain.FusedHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.FusedHit{ID: h.ID, Score: h.Score, Payload: h.Payload})
	}
	return out
}
