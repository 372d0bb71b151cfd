// Package points talks to Qdrant over gRPC. Every point carries two named
// vectors, "dense" and "sparse", and keeps the caller-supplied identifier
// in its payload.
package points

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	"github.com/ashokbr78/qdrant-mcp-server/internal/ratelimit"
)

const (
	DenseVectorName  = "dense"
	SparseVectorName = "sparse"
)

// api is the consumer interface over the Qdrant client (ISP).
type api interface {
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Get(ctx context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	CollectionExists(ctx context.Context, collection string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collection string) (*qdrant.CollectionInfo, error)
}

// Repo implements usecase/store.PointsRepo over a Qdrant collection.
// All operations are idempotent, so transient store failures are retried
// with backoff before ErrStoreUnavailable surfaces.
type Repo struct {
	client     api
	collection string
	caller     *ratelimit.Caller
}

// New creates a points repository bound to one collection with the default
// retry policy.
func New(client api, collection string) *Repo {
	return &Repo{
		client:     client,
		collection: collection,
		caller:     ratelimit.New(0, ratelimit.DefaultPolicy(), nil),
	}
}

// WithRetry overrides the retry policy for transient store failures.
func (r *Repo) WithRetry(policy ratelimit.Policy, logger *zap.Logger) *Repo {
	r.caller = ratelimit.New(0, policy, logger)
	return r
}

// do retries op on transient gRPC failures. Anything else fails immediately.
func (r *Repo) do(ctx context.Context, op func(ctx context.Context) error) error {
	return r.caller.Do(ctx, func(ctx context.Context) error {
		err := op(ctx)
		if err != nil && !transient(err) {
			return ratelimit.Permanent(err)
		}
		return err
	})
}

// EnsureCollection creates the collection with named dense and sparse
// vector slots when it does not exist yet. An existing collection must
// already carry a dense slot of the requested width.
func (r *Repo) EnsureCollection(ctx context.Context, dims int) error {
	var exists bool
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		exists, err = r.client.CollectionExists(ctx, r.collection)
		return err
	})
	if err != nil {
		return storeErr("collection exists", err)
	}
	if exists {
		return r.checkDimensions(ctx, dims)
	}

	err = r.do(ctx, func(ctx context.Context) error {
		return r.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: r.collection,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				DenseVectorName: {
					Size:     uint64(dims),
					Distance: qdrant.Distance_Cosine,
				},
			}),
			SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
				SparseVectorName: {},
			}),
		})
	})
	if err != nil {
		return storeErr("create collection", err)
	}
	return nil
}

// checkDimensions compares the existing dense slot width against the
// configured embedder width. A mismatch is fatal: vectors of the wrong
// length would be rejected (or worse, silently mis-scored) on every write.
func (r *Repo) checkDimensions(ctx context.Context, dims int) error {
	var info *qdrant.CollectionInfo
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		info, err = r.client.GetCollectionInfo(ctx, r.collection)
		return err
	})
	if err != nil {
		return storeErr("collection info", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()[DenseVectorName]
	if params == nil {
		return fmt.Errorf("collection %s has no %q vector slot", r.collection, DenseVectorName)
	}
	if got := params.GetSize(); got != uint64(dims) {
		return fmt.Errorf("collection %s dense slot is %d-dimensional, embedder produces %d: %w",
			r.collection, got, dims, domain.ErrDimensionMismatch)
	}
	return nil
}

// Upsert writes documents as points. Document IDs must already be
// normalized to UUIDs. Waits for the write to be applied.
func (r *Repo) Upsert(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	pts := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		pt, err := toPointStruct(doc)
		if err != nil {
			return fmt.Errorf("point %s: %w", doc.ID, err)
		}
		pts = append(pts, pt)
	}

	err := r.do(ctx, func(ctx context.Context) error {
		_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: r.collection,
			Points:         pts,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return storeErr("upsert", err)
	}
	return nil
}

// GetPayload fetches a stored point's payload by normalized ID.
// The second return reports whether the point exists.
func (r *Repo) GetPayload(ctx context.Context, id string) (map[string]any, bool, error) {
	var pts []*qdrant.RetrievedPoint
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		pts, err = r.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: r.collection,
			Ids:            []*qdrant.PointId{qdrant.NewID(id)},
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, false, storeErr("get", err)
	}
	if len(pts) == 0 {
		return nil, false, nil
	}
	return payloadToMap(pts[0].Payload), true, nil
}

// Delete removes points by normalized ID. Deleting absent points is not
// an error. Waits for the write to be applied.
func (r *Repo) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	err := r.do(ctx, func(ctx context.Context) error {
		_, err := r.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: r.collection,
			Points:         qdrant.NewPointsSelector(pointIDs...),
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// SearchDense runs similarity search over the dense vector slot.
// Hits come back in score order with 1-based ranks.
func (r *Repo) SearchDense(
	ctx context.Context, vector []float32, limit int, filter map[string]string,
) ([]domain.SearchHit, error) {
	var points []*qdrant.ScoredPoint
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		points, err = r.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: r.collection,
			Query:          qdrant.NewQuery(vector...),
			Using:          qdrant.PtrOf(DenseVectorName),
			Limit:          qdrant.PtrOf(uint64(limit)),
			Filter:         toFilter(filter),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, storeErr("query dense", err)
	}
	return toHits(points), nil
}

// SearchSparse runs lexical search over the sparse vector slot.
func (r *Repo) SearchSparse(
	ctx context.Context, sparse domain.SparseVector, limit int, filter map[string]string,
) ([]domain.SearchHit, error) {
	indices, values := splitSparse(sparse)

	var points []*qdrant.ScoredPoint
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		points, err = r.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: r.collection,
			Query:          qdrant.NewQuerySparse(indices, values),
			Using:          qdrant.PtrOf(SparseVectorName),
			Limit:          qdrant.PtrOf(uint64(limit)),
			Filter:         toFilter(filter),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, storeErr("query sparse", err)
	}
	return toHits(points), nil
}

// transient reports whether err is worth retrying.
func transient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// storeErr maps transport failures to ErrStoreUnavailable so callers can
// distinguish a down store from a bad request.
func storeErr(op string, err error) error {
	if transient(err) || ratelimit.IsExhausted(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
