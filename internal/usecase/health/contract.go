package health

import "context"

// StoreChecker verifies vector store availability.
type StoreChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingChecker verifies embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger verifies embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
