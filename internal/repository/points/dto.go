package points

import (
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

func toPointStruct(doc domain.Document) (*qdrant.PointStruct, error) {
	if len(doc.Dense) == 0 {
		return nil, fmt.Errorf("missing dense vector")
	}

	indices, values := splitSparse(doc.Sparse)

	return &qdrant.PointStruct{
		Id: qdrant.NewID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			DenseVectorName:  qdrant.NewVector(doc.Dense...),
			SparseVectorName: qdrant.NewVectorSparse(indices, values),
		}),
		Payload: qdrant.NewValueMap(doc.Payload),
	}, nil
}

// splitSparse flattens a sparse vector into parallel slices ordered by
// ascending term index.
func splitSparse(sv domain.SparseVector) ([]uint32, []float32) {
	indices := make([]uint32, 0, len(sv))
	for idx := range sv {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = sv[idx]
	}
	return indices, values
}

func toFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		must = append(must, qdrant.NewMatchKeyword(k, filter[k]))
	}
	return &qdrant.Filter{Must: must}
}

func toHits(points []*qdrant.ScoredPoint) []domain.SearchHit {
	hits := make([]domain.SearchHit, 0, len(points))
	for i, pt := range points {
		hits = append(hits, domain.SearchHit{
			ID:      pt.GetId().GetUuid(),
			Score:   float64(pt.GetScore()),
			Rank:    i + 1,
			Payload: payloadToMap(pt.GetPayload()),
		})
	}
	return hits
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, valueToAny(item))
		}
		return out
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
