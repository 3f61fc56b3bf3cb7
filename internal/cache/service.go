// Package cache implements the cache service consumed by repositories and
// background jobs. The service absorbs every backend failure: a transport
// error reads as a miss, a failed write is logged and dropped, and a payload
// that no longer decodes is removed. Only caller bugs (blank keys, nil
// values) come back as errors.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
)

// DefaultTTL is used when neither the caller nor the configuration provide one
const DefaultTTL = 30 * time.Minute

var (
	ErrInvalidKey     = errors.New("cache key must not be blank")
	ErrNilValue       = errors.New("cache value must not be nil")
	ErrInvalidTag     = errors.New("cache tag must not be blank")
	ErrInvalidPattern = errors.New("cache pattern must not be blank")
	ErrInvalidDest    = errors.New("cache destination must be a non-nil pointer")
)

var nullPayload = []byte("null")

// Stats is a point-in-time snapshot of service counters
type Stats struct {
	Provider      string `json:"provider"`
	Hits          int64  `json:"hits"`
	Misses        int64  `json:"misses"`
	Sets          int64  `json:"sets"`
	Removals      int64  `json:"removals"`
	BackendErrors int64  `json:"backendErrors"`
	CorruptValues int64  `json:"corruptValues"`
}

// Service is the single cache contract used by the rest of the system
type Service struct {
	store      interfaces.CacheStore
	batch      interfaces.BatchCacheStore
	defaultTTL time.Duration
	observer   Observer
	logger     *logrus.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	removals      atomic.Int64
	backendErrors atomic.Int64
	corruptValues atomic.Int64
}

// NewService wraps a backend. Native batching is detected once here.
func NewService(store interfaces.CacheStore, defaultTTL time.Duration, observer Observer, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	s := &Service{
		store:      store,
		defaultTTL: defaultTTL,
		observer:   observer,
		logger:     logger,
	}
	if batch, ok := store.(interfaces.BatchCacheStore); ok {
		s.batch = batch
	}

	return s
}

// Provider returns the backend name
func (s *Service) Provider() string {
	return s.store.Name()
}

// DefaultTTL returns the TTL applied when callers pass zero
func (s *Service) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Get decodes the cached value for key into dest and reports whether it was found
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateDest(dest); err != nil {
		return false, err
	}

	start := time.Now()
	found := s.lookup(ctx, key, dest)
	elapsed := time.Since(start)

	if found {
		s.observer.RecordHit(key, elapsed)
	} else {
		s.observer.RecordMiss(key, elapsed)
	}

	return found, nil
}

// Set stores value under key. A zero ttl selects the default TTL.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return s.SetWithTags(ctx, key, value, nil, ttl)
}

// SetWithTags stores value under key and associates the key with each tag
func (s *Service) SetWithTags(ctx context.Context, key string, value interface{}, tags []string, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return ErrInvalidTag
		}
	}

	data, err := encode(value)
	if err != nil {
		return err
	}

	s.write(ctx, key, data, tags, s.resolveTTL(ttl))
	return nil
}

// Remove deletes a single key
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	removed, err := s.store.Delete(ctx, key)
	if err != nil {
		s.backendErrors.Add(1)
		s.logger.WithError(err).WithField("key", key).Warn("Cache invalidation failed")
		return nil
	}

	if removed {
		s.removals.Add(1)
		s.observer.RecordInvalidation(key, 1)
	}
	s.logger.WithFields(logrus.Fields{
		"key":     key,
		"removed": removed,
	}).Debug("Cache key removed")

	return nil
}

// RemoveByPattern deletes every key matching pattern. Matching no keys is not an error.
func (s *Service) RemoveByPattern(ctx context.Context, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return ErrInvalidPattern
	}

	removed, err := s.store.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.backendErrors.Add(1)
		s.logger.WithError(err).WithField("pattern", pattern).Warn("Cache pattern invalidation failed")
		return nil
	}

	if removed > 0 {
		s.removals.Add(removed)
		s.observer.RecordInvalidation(pattern, removed)
	}
	s.logger.WithFields(logrus.Fields{
		"pattern": pattern,
		"removed": removed,
	}).Debug("Cache pattern removed")

	return nil
}

// RemoveByTag deletes every key associated with tag. An unknown tag is not an error.
func (s *Service) RemoveByTag(ctx context.Context, tag string) error {
	if strings.TrimSpace(tag) == "" {
		return ErrInvalidTag
	}

	removed, err := s.store.DeleteByTag(ctx, tag)
	if err != nil {
		s.backendErrors.Add(1)
		s.logger.WithError(err).WithField("tag", tag).Warn("Cache tag invalidation failed")
		return nil
	}

	if removed > 0 {
		s.removals.Add(removed)
		s.observer.RecordInvalidation("tag:"+tag, removed)
	}
	s.logger.WithFields(logrus.Fields{
		"tag":     tag,
		"removed": removed,
	}).Debug("Cache tag removed")

	return nil
}

// Exists reports whether key is present. Backend failures read as absent.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		s.backendErrors.Add(1)
		s.logger.WithError(err).WithField("key", key).Warn("Cache existence check failed")
		return false, nil
	}

	return exists, nil
}

// Stats returns a snapshot of the service counters
func (s *Service) Stats() Stats {
	return Stats{
		Provider:      s.store.Name(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Sets:          s.sets.Load(),
		Removals:      s.removals.Load(),
		BackendErrors: s.backendErrors.Load(),
		CorruptValues: s.corruptValues.Load(),
	}
}

// Ping checks the backend
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close releases the backend
func (s *Service) Close() error {
	return s.store.Close()
}

// lookup fetches and decodes a key without notifying the observer
func (s *Service) lookup(ctx context.Context, key string, dest interface{}) bool {
	start := time.Now()

	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.backendErrors.Add(1)
		s.misses.Add(1)
		s.logger.WithError(err).WithField("key", key).Warn("Cache get failed, treating as miss")
		return false
	}

	if !found {
		s.misses.Add(1)
		s.logger.WithFields(logrus.Fields{
			"key":      key,
			"result":   "miss",
			"duration": time.Since(start),
		}).Debug("Cache lookup")
		return false
	}

	if !s.decode(ctx, key, data, dest) {
		s.misses.Add(1)
		return false
	}

	s.hits.Add(1)
	s.logger.WithFields(logrus.Fields{
		"key":      key,
		"result":   "hit",
		"duration": time.Since(start),
	}).Debug("Cache lookup")

	return true
}

// decode unmarshals a payload; an undecodable payload is removed so the next read repopulates it
func (s *Service) decode(ctx context.Context, key string, data []byte, dest interface{}) bool {
	if err := json.Unmarshal(data, dest); err != nil {
		var destErr *json.InvalidUnmarshalError
		if errors.As(err, &destErr) {
			// the entry is fine, the destination is not
			s.logger.WithError(err).WithField("key", key).Error("Cache value decoded into an invalid destination")
			return false
		}
		s.corruptValues.Add(1)
		s.logger.WithError(err).WithField("key", key).Warn("Failed to deserialize cache value, removing key")
		if _, delErr := s.store.Delete(ctx, key); delErr != nil {
			s.backendErrors.Add(1)
			s.logger.WithError(delErr).WithField("key", key).Warn("Failed to remove corrupted cache value")
		}
		return false
	}
	return true
}

func (s *Service) write(ctx context.Context, key string, data []byte, tags []string, ttl time.Duration) {
	start := time.Now()

	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		s.backendErrors.Add(1)
		s.logger.WithError(err).WithField("key", key).Warn("Cache set failed")
		return
	}
	s.sets.Add(1)

	if len(tags) > 0 {
		if err := s.store.AddToTags(ctx, key, tags, ttl); err != nil {
			// the value is cached but tag invalidation will not reach it
			s.backendErrors.Add(1)
			s.logger.WithError(err).WithFields(logrus.Fields{
				"key":  key,
				"tags": tags,
			}).Error("Cache tag association failed after value write")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"key":      key,
		"ttl":      ttl,
		"tags":     tags,
		"duration": time.Since(start),
	}).Debug("Cache set")
}

func (s *Service) resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

func validateDest(dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return ErrInvalidDest
	}
	return nil
}

func encode(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, ErrNilValue
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize cache value: %w", err)
	}
	if bytes.Equal(data, nullPayload) {
		return nil, ErrNilValue
	}
	return data, nil
}
