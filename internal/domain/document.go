package domain

// Reserved payload keys on every stored point.
const (
	// PayloadKeyID holds the caller-supplied identifier before normalization.
	PayloadKeyID = "document_id"
	// PayloadKeyText holds the stored text.
	PayloadKeyText = "text"
)

// SparseVector maps a term id to its non-negative weight. Absent terms
// implicitly weigh zero; empty text encodes to an empty (nil) map.
type SparseVector map[uint32]float32

// Document is one unit of stored text. Dense and Sparse are computed on
// upsert when not already supplied by the caller.
type Document struct {
	ID      string
	Text    string
	Payload map[string]any
	Dense   []float32
	Sparse  SparseVector
}

// SearchHit is a single hit from one ranked list (dense-only or sparse-only).
// Rank is the 1-based position within its originating list.
type SearchHit struct {
	ID      string
	Score   float64
	Rank    int
	Payload map[string]any
}

// FusedHit is a merged hit. Score is the reciprocal-rank-fusion score, or the
// raw similarity score in pure-dense mode.
type FusedHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}
