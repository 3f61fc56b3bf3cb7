// Package memory provides the in-process cache backend.
//
// Values live in a go-cache store, which owns expiry. Pattern and tag
// removal are emulated: patterns are matched as substrings against an index
// of the keys this process inserted, and tags are tracked in a local index. Keys written
// by other processes are invisible here, and "roles:*:active" matches more
// loosely than the networked backend's glob would.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
)

const (
	// TagGracePeriod is how much longer a tag set lives than the values it indexes
	TagGracePeriod = 5 * time.Minute

	tagPruneInterval = time.Minute
)

type tagSet struct {
	keys      map[string]struct{}
	expiresAt time.Time
}

// CacheMemoryRepository implements CacheStore on top of an in-process map
type CacheMemoryRepository struct {
	store  *gocache.Cache
	logger *logrus.Logger
	now    func() time.Time

	// mu guards keys, tags and the prune timestamps; value reads never take it
	mu           sync.Mutex
	keys         map[string]struct{}
	tags         map[string]*tagSet
	lastPrune    time.Time
	lastKeyPrune time.Time
}

// NewCacheRepository creates a new in-memory cache repository
func NewCacheRepository(logger *logrus.Logger, cfg *config.RepositoryConfig) *CacheMemoryRepository {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	cleanup := cfg.LocalCleanupInterval
	if cleanup <= 0 {
		cleanup = time.Minute
	}

	return &CacheMemoryRepository{
		store:  gocache.New(cfg.DefaultTTL, cleanup),
		logger: logger,
		now:    time.Now,
		keys:   make(map[string]struct{}),
		tags:   make(map[string]*tagSet),
	}
}

// Name identifies the backend in logs and metadata
func (r *CacheMemoryRepository) Name() string {
	return string(config.CacheProviderLocal)
}

// Get retrieves a value; go-cache never returns an expired item
func (r *CacheMemoryRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found := r.store.Get(key)
	if !found {
		return nil, false, nil
	}

	data, ok := value.([]byte)
	if !ok {
		r.store.Delete(key)
		return nil, false, nil
	}

	// hand out a copy so callers cannot mutate the stored payload
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Set stores a copy of the value with the given TTL
func (r *CacheMemoryRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store.Set(key, data, ttl)
	r.keys[key] = struct{}{}

	if now := r.now(); now.Sub(r.lastKeyPrune) >= tagPruneInterval {
		r.pruneExpiredKeysLocked()
		r.lastKeyPrune = now
	}
	return nil
}

// Delete removes a key
func (r *CacheMemoryRepository) Delete(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, found := r.store.Get(key)
	r.store.Delete(key)
	delete(r.keys, key)
	return found, nil
}

// Exists checks if an unexpired key is present
func (r *CacheMemoryRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, found := r.store.Get(key)
	return found, nil
}

// DeleteByPattern removes every live key containing the pattern with its
// wildcards stripped. This is a substring match, not a glob.
func (r *CacheMemoryRepository) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	needle := strings.ReplaceAll(pattern, "*", "")

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key := range r.keys {
		if needle != "" && !strings.Contains(key, needle) {
			continue
		}
		if _, found := r.store.Get(key); found {
			deleted++
		}
		r.store.Delete(key)
		delete(r.keys, key)
	}

	return deleted, nil
}

// AddToTags records the key under each tag
func (r *CacheMemoryRepository) AddToTags(ctx context.Context, key string, tags []string, ttl time.Duration) error {
	if len(tags) == 0 {
		return nil
	}

	now := r.now()
	expiresAt := now.Add(ttl + TagGracePeriod)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tag := range tags {
		set, ok := r.tags[tag]
		if !ok || now.After(set.expiresAt) {
			set = &tagSet{keys: make(map[string]struct{})}
			r.tags[tag] = set
		}
		set.keys[key] = struct{}{}
		if expiresAt.After(set.expiresAt) {
			set.expiresAt = expiresAt
		}
	}

	if now.Sub(r.lastPrune) >= tagPruneInterval {
		r.pruneExpiredTagsLocked(now)
		r.lastPrune = now
	}

	return nil
}

// DeleteByTag removes every key recorded under the tag, then the tag itself
func (r *CacheMemoryRepository) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.tags[tag]
	delete(r.tags, tag)
	if !ok || r.now().After(set.expiresAt) {
		return 0, nil
	}

	var deleted int64
	for key := range set.keys {
		if _, found := r.store.Get(key); found {
			deleted++
		}
		r.store.Delete(key)
		delete(r.keys, key)
	}

	return deleted, nil
}

// TagCount returns the number of tag sets currently tracked
func (r *CacheMemoryRepository) TagCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tags)
}

// KeyCount returns the number of keys in the pattern index, including expired
// ones not yet pruned
func (r *CacheMemoryRepository) KeyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// ItemCount returns the number of stored items, including expired ones not yet cleaned up
func (r *CacheMemoryRepository) ItemCount() int {
	return r.store.ItemCount()
}

// Flush removes all items and tags
func (r *CacheMemoryRepository) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store.Flush()
	r.keys = make(map[string]struct{})
	r.tags = make(map[string]*tagSet)
}

// Ping always succeeds for the in-process store
func (r *CacheMemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close drops all state; the process-local cache does not outlive its owner
func (r *CacheMemoryRepository) Close() error {
	r.Flush()
	return nil
}

func (r *CacheMemoryRepository) pruneExpiredTagsLocked(now time.Time) {
	for tag, set := range r.tags {
		if now.After(set.expiresAt) {
			delete(r.tags, tag)
		}
	}
}

// pruneExpiredKeysLocked drops index entries whose values go-cache has expired
func (r *CacheMemoryRepository) pruneExpiredKeysLocked() {
	for key := range r.keys {
		if _, found := r.store.Get(key); !found {
			delete(r.keys, key)
		}
	}
}
