package cache

import (
	"context"
	"time"
)

// LoadOptions controls how a loaded value is written back
type LoadOptions struct {
	TTL  time.Duration
	Tags []string
	// TagsFrom derives extra tags from the loaded value, for tags that depend
	// on fields only the source of truth knows (owner id, entity id).
	TagsFrom func(value any) []string
}

func (o LoadOptions) tagsFor(value any) []string {
	if o.TagsFrom == nil {
		return o.Tags
	}
	extra := o.TagsFrom(value)
	if len(extra) == 0 {
		return o.Tags
	}
	tags := make([]string, 0, len(o.Tags)+len(extra))
	tags = append(tags, o.Tags...)
	return append(tags, extra...)
}

// LoadFunc queries the source of truth. ok=false means there is nothing worth
// caching (not found, empty listing) and the value is returned uncached.
type LoadFunc[T any] func(ctx context.Context) (value T, ok bool, err error)

// GetOrLoad serves key from cache, or runs load on a miss and caches its result.
// Loader errors are returned unchanged; cache failures never are.
func GetOrLoad[T any](ctx context.Context, s *Service, key string, opts LoadOptions, load LoadFunc[T]) (T, error) {
	var cached T
	if err := validateKey(key); err != nil {
		return cached, err
	}

	start := time.Now()
	if s.lookup(ctx, key, &cached) {
		s.observer.RecordHit(key, time.Since(start))
		return cached, nil
	}

	loadStart := time.Now()
	value, ok, err := load(ctx)
	s.observer.RecordMiss(key, time.Since(loadStart))
	if err != nil {
		var zero T
		return zero, err
	}

	if ok {
		data, encErr := encode(value)
		if encErr != nil {
			s.logger.WithError(encErr).WithField("key", key).Warn("Skipping cache population for unserializable value")
			return value, nil
		}
		s.write(ctx, key, data, opts.tagsFor(value), s.resolveTTL(opts.TTL))
	}

	return value, nil
}
