package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/memory"
	redisImpl "github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/redis"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
)

// NewStore builds the backend named by the configuration. The choice is made
// once; callers keep the returned store for the process lifetime.
func NewStore(cfg *config.RepositoryConfig, client *redis.Client, logger *logrus.Logger) (interfaces.CacheStore, error) {
	switch cfg.CacheProvider {
	case config.CacheProviderNetworked:
		if client == nil {
			return nil, fmt.Errorf("networked cache provider requires a redis client")
		}
		return redisImpl.NewCacheRepository(client, logger, cfg), nil
	case config.CacheProviderLocal:
		return memory.NewCacheRepository(logger, cfg), nil
	default:
		return nil, fmt.Errorf("unknown cache provider: %q", cfg.CacheProvider)
	}
}
