package interfaces

import (
	"context"
	"time"
)

// CacheStore defines the byte-level contract shared by all cache backends.
// Get reports a miss as (nil, false, nil); transport problems are returned as errors.
type CacheStore interface {
	// Key-Value operations
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)

	// Pattern and tag operations
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
	AddToTags(ctx context.Context, key string, tags []string, ttl time.Duration) error
	DeleteByTag(ctx context.Context, tag string) (int64, error)

	// Health
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// BatchCacheStore is implemented by backends with native multi-key round trips
type BatchCacheStore interface {
	CacheStore

	GetMany(ctx context.Context, keys []string) (map[string][]byte, map[string]error, error)
	SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error
}
