package store

import (
	"sort"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

// DefaultFusionK is the Reciprocal Rank Fusion constant (standard value
// from Cormack et al. 2009).
const DefaultFusionK = 60

// fuseRRF merges dense and sparse result lists via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// Ties break on the smaller rank sum, then on the point key, so the output
// order is stable across runs.
func fuseRRF(dense, sparse []domain.SearchHit, k, topK int) []domain.FusedHit {
	type scored struct {
		id      string
		score   float64
		rankSum int
		payload map[string]any
	}

	merged := make(map[string]*scored)

	accumulate := func(hits []domain.SearchHit) {
		for _, h := range hits {
			s := 1.0 / float64(k+h.Rank)
			if existing, ok := merged[h.ID]; ok {
				existing.score += s
				existing.rankSum += h.Rank
				continue
			}
			merged[h.ID] = &scored{
				id:      h.ID,
				score:   s,
				rankSum: h.Rank,
				payload: h.Payload,
			}
		}
	}
	accumulate(dense)
	accumulate(sparse)

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		if all[i].rankSum != all[j].rankSum {
			return all[i].rankSum < all[j].rankSum
		}
		return all[i].id < all[j].id
	})

	if len(all) > topK {
		all = all[:topK]
	}

	results := make([]domain.FusedHit, 0, len(all))
	for _, s := range all {
		results = append(results, domain.FusedHit{
			ID:      s.id,
			Score:   s.score,
			Payload: s.payload,
		})
	}
	return results
}
