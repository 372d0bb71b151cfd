package domain

import "errors"

var (
	// ErrInvalidInput signals malformed or empty caller input. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderUnavailable signals an embedding backend that stayed down
	// after retries were exhausted.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrDimensionMismatch signals a vector whose length disagrees with the
	// configured dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnknownProvider signals an unrecognized provider kind.
	ErrUnknownProvider = errors.New("unknown embedding provider")
	// ErrMissingCredential signals a cloud provider configured without its API key.
	ErrMissingCredential = errors.New("missing provider credential")
	// ErrModelNotFound signals a local model absent from the runtime.
	ErrModelNotFound = errors.New("model not found")
	// ErrIdentifierCollision signals two distinct caller ids mapping to the
	// same store key. Fatal, the operation is aborted.
	ErrIdentifierCollision = errors.New("identifier collision")
	// ErrStoreUnavailable signals a vector store connectivity failure.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)
