// Package cache holds short-lived per-terminal session state, primarily the
// cart blobs. Values are opaque bytes with a TTL; losing them is an
// inconvenience, never a correctness problem, so the ledger never lives here.
package cache

import (
	"context"
	"time"
)

// SessionStore is a tiny TTL'd key-value surface. Get returns (nil, nil) on a
// miss or an expired key.
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
