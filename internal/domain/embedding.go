package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
// Dimensions and ModelName are pure accessors, no I/O.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) ([]EmbeddingResult, error)
	Dimensions() int
	ModelName() string
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries a dense vector through the decorator chain.
// Invariant: Dimensions == len(Vector).
type EmbeddingResult struct {
	Vector     []float32
	Dimensions int
	Model      string
}

// Validate checks the dimensionality invariant against the configured size.
func (r EmbeddingResult) Validate(want int) error {
	if r.Dimensions != len(r.Vector) {
		return fmt.Errorf("result reports %d dimensions for a %d-length vector: %w",
			r.Dimensions, len(r.Vector), ErrDimensionMismatch)
	}
	if want > 0 && r.Dimensions != want {
		return fmt.Errorf("got %d dimensions, want %d: %w", r.Dimensions, want, ErrDimensionMismatch)
	}
	return nil
}
