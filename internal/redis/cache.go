package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
)

const (
	// TagGracePeriod is how much longer a tag set lives than the values it indexes
	TagGracePeriod = 5 * time.Minute

	scanBatchSize = 500
)

// CacheRedisRepository implements CacheStore and BatchCacheStore using Redis
type CacheRedisRepository struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
	prefix  string
}

// NewCacheRepository creates a new Redis-based cache repository.
// Every round trip goes through a circuit breaker so an unreachable server turns
// into fast failures instead of a timeout per request.
func NewCacheRepository(client *redis.Client, logger *logrus.Logger, cfg *config.RepositoryConfig) *CacheRedisRepository {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-redis",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cache circuit breaker changed state")
		},
	})

	return &CacheRedisRepository{
		client:  client,
		breaker: breaker,
		logger:  logger,
		prefix:  cfg.KeyPrefix,
	}
}

// Name identifies the backend in logs and metadata
func (r *CacheRedisRepository) Name() string {
	return string(config.CacheProviderNetworked)
}

// Get retrieves a value from Redis cache
func (r *CacheRedisRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Get(ctx, r.getCacheKey(key)).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache value: %w", err)
	}

	return result.([]byte), true, nil
}

// Set stores a value in Redis cache with TTL
func (r *CacheRedisRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, r.getCacheKey(key), value, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set cache value: %w", err)
	}

	return nil
}

// Delete removes a key from Redis cache
func (r *CacheRedisRepository) Delete(ctx context.Context, key string) (bool, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Del(ctx, r.getCacheKey(key)).Result()
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete cache key: %w", err)
	}

	return result.(int64) > 0, nil
}

// Exists checks if a key exists in Redis cache
func (r *CacheRedisRepository) Exists(ctx context.Context, key string) (bool, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Exists(ctx, r.getCacheKey(key)).Result()
	})
	if err != nil {
		return false, fmt.Errorf("failed to check cache key existence: %w", err)
	}

	return result.(int64) > 0, nil
}

// GetMany retrieves multiple values in one pipelined round trip.
// Misses are absent from the returned map; per-key failures are reported separately.
func (r *CacheRedisRepository) GetMany(ctx context.Context, keys []string) (map[string][]byte, map[string]error, error) {
	values := make(map[string][]byte, len(keys))
	keyErrors := make(map[string]error)
	if len(keys) == 0 {
		return values, keyErrors, nil
	}

	_, err := r.breaker.Execute(func() (interface{}, error) {
		pipe := r.client.Pipeline()
		cmds := make([]*redis.StringCmd, len(keys))
		for i, key := range keys {
			cmds[i] = pipe.Get(ctx, r.getCacheKey(key))
		}

		_, execErr := pipe.Exec(ctx)

		var firstFailure error
		for i, cmd := range cmds {
			data, cmdErr := cmd.Bytes()
			if cmdErr != nil {
				if errors.Is(cmdErr, redis.Nil) {
					continue
				}
				keyErrors[keys[i]] = cmdErr
				if firstFailure == nil {
					firstFailure = cmdErr
				}
				continue
			}
			values[keys[i]] = data
		}

		if execErr != nil && !errors.Is(execErr, redis.Nil) && len(values) == 0 {
			return nil, execErr
		}
		return nil, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute bulk cache get: %w", err)
	}

	return values, keyErrors, nil
}

// SetMany stores multiple values in one pipelined round trip
func (r *CacheRedisRepository) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}

	_, err := r.breaker.Execute(func() (interface{}, error) {
		pipe := r.client.Pipeline()
		for key, value := range items {
			pipe.Set(ctx, r.getCacheKey(key), value, ttl)
		}
		_, execErr := pipe.Exec(ctx)
		return nil, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to execute bulk cache set: %w", err)
	}

	return nil
}

// DeleteByPattern removes all keys matching a glob pattern using SCAN
func (r *CacheRedisRepository) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		var deleted int64
		batch := make([]string, 0, scanBatchSize)

		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			count, delErr := r.client.Del(ctx, batch...).Result()
			if delErr != nil {
				return delErr
			}
			deleted += count
			batch = batch[:0]
			return nil
		}

		iter := r.client.Scan(ctx, 0, r.getCacheKey(pattern), scanBatchSize).Iterator()
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) >= scanBatchSize {
				if flushErr := flush(); flushErr != nil {
					return deleted, flushErr
				}
			}
		}
		if iterErr := iter.Err(); iterErr != nil {
			return deleted, iterErr
		}
		if flushErr := flush(); flushErr != nil {
			return deleted, flushErr
		}
		return deleted, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys by pattern: %w", err)
	}

	return result.(int64), nil
}

// AddToTags records the key in each tag set. Tag sets expire TagGracePeriod after
// the longest-lived member and are never shortened by a later, shorter write.
func (r *CacheRedisRepository) AddToTags(ctx context.Context, key string, tags []string, ttl time.Duration) error {
	if len(tags) == 0 {
		return nil
	}

	cacheKey := r.getCacheKey(key)
	tagTTL := ttl + TagGracePeriod

	_, err := r.breaker.Execute(func() (interface{}, error) {
		pipe := r.client.Pipeline()
		ttlCmds := make([]*redis.DurationCmd, len(tags))
		for i, tag := range tags {
			tagKey := r.getTagKey(tag)
			pipe.SAdd(ctx, tagKey, cacheKey)
			ttlCmds[i] = pipe.PTTL(ctx, tagKey)
		}
		if _, execErr := pipe.Exec(ctx); execErr != nil {
			return nil, execErr
		}

		expirePipe := r.client.Pipeline()
		pending := 0
		for i, tag := range tags {
			current := ttlCmds[i].Val()
			// negative values mean the set has no expiry yet
			if current < 0 || current < tagTTL {
				expirePipe.PExpire(ctx, r.getTagKey(tag), tagTTL)
				pending++
			}
		}
		if pending == 0 {
			return nil, nil
		}
		_, execErr := expirePipe.Exec(ctx)
		return nil, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to associate cache key with tags: %w", err)
	}

	return nil
}

// DeleteByTag removes every key recorded under the tag, then the tag set itself
func (r *CacheRedisRepository) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	tagKey := r.getTagKey(tag)

	result, err := r.breaker.Execute(func() (interface{}, error) {
		members, smErr := r.client.SMembers(ctx, tagKey).Result()
		if smErr != nil {
			return int64(0), smErr
		}

		var deleted int64
		if len(members) > 0 {
			count, delErr := r.client.Del(ctx, members...).Result()
			if delErr != nil {
				return int64(0), delErr
			}
			deleted = count
		}

		if delErr := r.client.Del(ctx, tagKey).Err(); delErr != nil {
			return deleted, delErr
		}
		return deleted, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys by tag: %w", err)
	}

	return result.(int64), nil
}

// Ping checks Redis connection health
func (r *CacheRedisRepository) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

// Close releases the connection pool
func (r *CacheRedisRepository) Close() error {
	return r.client.Close()
}

// BreakerState reports the circuit breaker state for health output
func (r *CacheRedisRepository) BreakerState() string {
	return r.breaker.State().String()
}

// GetStats returns Redis statistics
func (r *CacheRedisRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := r.client.Info(ctx, "memory", "stats", "keyspace").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := map[string]interface{}{
		"redis_info": info,
		"breaker":    r.BreakerState(),
	}

	dbSize, err := r.client.DBSize(ctx).Result()
	if err == nil {
		stats["db_size"] = dbSize
	}

	poolStats := r.client.PoolStats()
	stats["pool_total_conns"] = poolStats.TotalConns
	stats["pool_idle_conns"] = poolStats.IdleConns

	return stats, nil
}

// Helper methods
func (r *CacheRedisRepository) getCacheKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *CacheRedisRepository) getTagKey(tag string) string {
	return r.getCacheKey("tag:" + tag)
}
