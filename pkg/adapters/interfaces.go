package adapters

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/performance"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/warmup"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
)

// DataAdapter exposes the identity repositories behind their cache layer
type DataAdapter interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Health(ctx context.Context) (*HealthStatus, error)

	// Background tasks (warm-up scheduler and analyzer reports)
	Start(ctx context.Context) error
	Stop()
	WarmUp(ctx context.Context) (*warmup.Result, error)

	// Repository access; reads are served cache-aside
	Roles() interfaces.RoleRepository
	RefreshTokens() interfaces.RefreshTokenRepository
	Users() interfaces.UserRepository

	// Cache layer
	Cache() *cache.Service
	Analyzer() *performance.Analyzer
	MetricsRegistry() *prometheus.Registry

	// Transaction support
	BeginTransaction(ctx context.Context) (Transaction, error)
}

// Transaction exposes uncached repositories bound to a database transaction.
// Cached role and token entries are invalidated after a successful commit.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Roles() interfaces.RoleRepository
	RefreshTokens() interfaces.RefreshTokenRepository
}

// HealthStatus reports the state of each dependency
type HealthStatus struct {
	Postgres      string      `json:"postgres"`
	CacheProvider string      `json:"cacheProvider"`
	Cache         string      `json:"cache"`
	BreakerState  string      `json:"breakerState,omitempty"`
	CacheStats    cache.Stats `json:"cacheStats"`

	// BackendStats carries server-side details when the backend exposes them
	BackendStats map[string]interface{} `json:"backendStats,omitempty"`
}
