package caching

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
)

// invalidation lists every cache entry a write may have made stale
type invalidation struct {
	keys     []string
	patterns []string
	tags     []string
}

// invalidate runs after the underlying write, whether or not the write succeeded.
// Failures are logged at warning level; they surface as drift, never as errors.
func invalidate(ctx context.Context, svc *cache.Service, logger *logrus.Logger, operation string, inv invalidation, writeErr error) {
	entry := logger.WithField("operation", operation)
	if writeErr != nil {
		entry = entry.WithField("write_error", writeErr.Error())
	}

	for _, key := range inv.keys {
		if err := svc.Remove(ctx, key); err != nil {
			entry.WithError(err).WithField("key", key).Warn("Cache invalidation failed")
		}
	}
	for _, pattern := range inv.patterns {
		if err := svc.RemoveByPattern(ctx, pattern); err != nil {
			entry.WithError(err).WithField("pattern", pattern).Warn("Cache invalidation failed")
		}
	}
	for _, tag := range inv.tags {
		if err := svc.RemoveByTag(ctx, tag); err != nil {
			entry.WithError(err).WithField("tag", tag).Warn("Cache invalidation failed")
		}
	}

	if writeErr != nil {
		entry.Warn("Invalidated cache after failed write")
		return
	}
	entry.WithFields(logrus.Fields{
		"keys":     len(inv.keys),
		"patterns": len(inv.patterns),
		"tags":     len(inv.tags),
	}).Debug("Invalidated cache after write")
}
