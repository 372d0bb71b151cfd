// Package db defines the key-value store contract backing the embedding cache.
package db

import (
	"context"
	"time"
)

// Store is the database facade.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TTLKV binds a KVStore to a fixed expiry so consumers that only know
// Get/Set still write expiring entries. TTL <= 0 writes without expiry.
type TTLKV struct {
	Store KVStore
	TTL   time.Duration
}

func (t TTLKV) Get(ctx context.Context, key string) ([]byte, error) {
	return t.Store.Get(ctx, key)
}

func (t TTLKV) Set(ctx context.Context, key string, value []byte) error {
	if t.TTL > 0 {
		return t.Store.SetWithTTL(ctx, key, value, t.TTL)
	}
	return t.Store.Set(ctx, key, value)
}
