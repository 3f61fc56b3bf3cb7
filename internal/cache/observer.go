package cache

import (
	"time"
)

// Observer receives access events from the cache service and the cache-aside helper.
// Implementations are called on the request path and must not block.
type Observer interface {
	RecordHit(key string, retrieval time.Duration)
	RecordMiss(key string, fallback time.Duration)
	RecordInvalidation(keyOrPattern string, affected int64)
}

type noopObserver struct{}

func (noopObserver) RecordHit(string, time.Duration)  {}
func (noopObserver) RecordMiss(string, time.Duration) {}
func (noopObserver) RecordInvalidation(string, int64) {}
