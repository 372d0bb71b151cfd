// Package sparse turns text into a weighted term vector for lexical search.
// Encoding is pure and deterministic: weights use BM25-style term-frequency
// saturation with a flat IDF, so no corpus statistics are consulted and
// identical text always produces an identical vector regardless of call
// order or prior state.
package sparse

import (
	"hash/fnv"

	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

// BM25 parameters (standard values from Robertson et al.).
const (
	defaultK1        = 1.2
	defaultB         = 0.75
	defaultAvgDocLen = 256.0
)

// Encoder computes sparse term-weight vectors. No network I/O, no mutable
// state; safe for concurrent use.
type Encoder struct {
	k1        float64
	b         float64
	avgDocLen float64
	tokenizer *Tokenizer
}

// NewEncoder creates an encoder with default BM25 parameters.
func NewEncoder() *Encoder {
	return &Encoder{
		k1:        defaultK1,
		b:         defaultB,
		avgDocLen: defaultAvgDocLen,
		tokenizer: NewTokenizer(),
	}
}

// WithParams overrides the BM25 k1/b parameters and the assumed average
// document length used for length normalization.
func (e *Encoder) WithParams(k1, b, avgDocLen float64) *Encoder {
	if k1 > 0 {
		e.k1 = k1
	}
	if b >= 0 && b <= 1 {
		e.b = b
	}
	if avgDocLen > 0 {
		e.avgDocLen = avgDocLen
	}
	return e
}

// Encode tokenizes text and assigns each distinct term a saturated
// term-frequency weight: tf*(k1+1) / (tf + k1*(1-b+b*dl/avgdl)).
// Empty text yields an empty vector, not an error.
func (e *Encoder) Encode(text string) domain.SparseVector {
	tokens := e.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return domain.SparseVector{}
	}

	tf := make(map[uint32]float64, len(tokens))
	for _, token := range tokens {
		tf[TermID(token)]++
	}

	dl := float64(len(tokens))
	norm := e.k1 * (1 - e.b + e.b*dl/e.avgDocLen)

	vec := make(domain.SparseVector, len(tf))
	for term, freq := range tf {
		vec[term] = float32(freq * (e.k1 + 1) / (freq + norm))
	}
	return vec
}

// TermID maps a token to its sparse index via FNV-1a.
func TermID(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}
