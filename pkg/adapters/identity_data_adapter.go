package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/caching"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/performance"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/postgres"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/warmup"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

// IdentityDataAdapter implements the DataAdapter interface for the identity service
type IdentityDataAdapter struct {
	// Database connections
	postgresDB  *sql.DB
	redisClient *redis.Client

	// Cache layer
	store     interfaces.CacheStore
	cache     *cache.Service
	analyzer  *performance.Analyzer
	registry  *prometheus.Registry
	scheduler *warmup.Scheduler

	// Repository implementations
	roles         interfaces.RoleRepository
	refreshTokens interfaces.RefreshTokenRepository
	users         interfaces.UserRepository

	// Configuration and logging
	config *config.RepositoryConfig
	logger *logrus.Logger

	// Connection state
	mu        sync.Mutex
	connected bool
	stopTasks context.CancelFunc
	tasksDone sync.WaitGroup
}

var _ DataAdapter = (*IdentityDataAdapter)(nil)

// NewIdentityDataAdapter creates a new identity data adapter
func NewIdentityDataAdapter(cfg *config.RepositoryConfig, logger *logrus.Logger) (*IdentityDataAdapter, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}
	if cfg == nil {
		return nil, fmt.Errorf("repository configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}

	return &IdentityDataAdapter{
		config: cfg,
		logger: logger,
	}, nil
}

// Connect establishes connections to all data sources and wires the cache layer
func (a *IdentityDataAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		return nil
	}

	db, err := a.connectPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	var client *redis.Client
	if a.config.CacheProvider == config.CacheProviderNetworked {
		client, err = a.connectRedis(ctx)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to configure Redis: %w", err)
		}
	}

	if err := a.initialize(db, client); err != nil {
		db.Close()
		if client != nil {
			client.Close()
		}
		return err
	}

	a.logger.WithField("cache_provider", a.cache.Provider()).Info("Identity data adapter connected to all data sources")
	return nil
}

// initialize wires store, service, analyzer, decorators and scheduler around open connections
func (a *IdentityDataAdapter) initialize(db *sql.DB, client *redis.Client) error {
	a.postgresDB = db
	a.redisClient = client
	a.registry = prometheus.NewRegistry()

	var observer cache.Observer
	if a.config.AnalyzerEnabled {
		analyzer, err := performance.NewAnalyzer(a.config, a.registry, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create cache analyzer: %w", err)
		}
		a.analyzer = analyzer
		observer = analyzer
	}

	store, err := cache.NewStore(a.config, client, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create cache store: %w", err)
	}
	a.store = store
	a.cache = cache.NewService(store, a.config.DefaultTTL, observer, a.logger)

	a.roles = caching.NewCachedRoleRepository(postgres.NewRoleRepository(db, a.logger, a.config), a.cache, a.logger)
	a.refreshTokens = caching.NewCachedRefreshTokenRepository(postgres.NewRefreshTokenRepository(db, a.logger, a.config), a.cache, a.logger)
	a.users = caching.NewCachedUserRepository(postgres.NewUserRepository(db, a.logger, a.config), a.cache)

	a.scheduler = warmup.NewScheduler(a.config, a.cache, a.roles, a.users, a.logger)

	a.connected = true
	a.logger.Info("Initialized all repository implementations")
	return nil
}

// Start launches the warm-up scheduler and the analyzer report loop
func (a *IdentityDataAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return fmt.Errorf("adapter not connected")
	}
	if a.stopTasks != nil {
		return nil
	}

	taskCtx, cancel := context.WithCancel(ctx)
	a.stopTasks = cancel

	if a.config.WarmupEnabled {
		a.scheduler.Start(taskCtx)
	}
	if a.analyzer != nil {
		a.tasksDone.Add(1)
		go func() {
			defer a.tasksDone.Done()
			a.analyzer.Run(taskCtx)
		}()
	}

	return nil
}

// Stop halts background tasks and waits for them to exit
func (a *IdentityDataAdapter) Stop() {
	a.mu.Lock()
	cancel := a.stopTasks
	a.stopTasks = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.scheduler.Stop()
	a.tasksDone.Wait()
}

// Disconnect stops background tasks and closes all connections
func (a *IdentityDataAdapter) Disconnect(ctx context.Context) error {
	a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil
	}

	var errs []error

	// closing the service closes the redis client when one is in use
	if err := a.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
	}

	if a.postgresDB != nil {
		if err := a.postgresDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close PostgreSQL: %w", err))
		}
	}

	a.connected = false

	if len(errs) > 0 {
		return fmt.Errorf("errors during disconnect: %v", errs)
	}

	a.logger.Info("Identity data adapter disconnected from all data sources")
	return nil
}

// Health checks every dependency. Only the database is critical: an
// unreachable cache is reported but does not fail the check.
func (a *IdentityDataAdapter) Health(ctx context.Context) (*HealthStatus, error) {
	if !a.isConnected() {
		return nil, fmt.Errorf("adapter not connected")
	}

	status := &HealthStatus{
		Postgres:      statusOK,
		CacheProvider: a.cache.Provider(),
		Cache:         statusOK,
		CacheStats:    a.cache.Stats(),
	}

	if breaker, ok := a.store.(interface{ BreakerState() string }); ok {
		status.BreakerState = breaker.BreakerState()
	}

	if err := a.cache.Ping(ctx); err != nil {
		status.Cache = statusUnavailable
		a.logger.WithError(err).Warn("Cache health check failed")
	} else if reporter, ok := a.store.(interface {
		GetStats(ctx context.Context) (map[string]interface{}, error)
	}); ok {
		stats, err := reporter.GetStats(ctx)
		if err != nil {
			a.logger.WithError(err).Debug("Cache backend stats unavailable")
		} else {
			status.BackendStats = stats
		}
	}

	if err := a.postgresDB.PingContext(ctx); err != nil {
		status.Postgres = statusUnavailable
		return status, fmt.Errorf("PostgreSQL health check failed: %w", err)
	}

	return status, nil
}

// WarmUp runs a warm-up pass immediately
func (a *IdentityDataAdapter) WarmUp(ctx context.Context) (*warmup.Result, error) {
	if !a.isConnected() {
		return nil, fmt.Errorf("adapter not connected")
	}
	return a.scheduler.RunOnce(ctx)
}

func (a *IdentityDataAdapter) Roles() interfaces.RoleRepository {
	return a.roles
}

func (a *IdentityDataAdapter) RefreshTokens() interfaces.RefreshTokenRepository {
	return a.refreshTokens
}

func (a *IdentityDataAdapter) Users() interfaces.UserRepository {
	return a.users
}

func (a *IdentityDataAdapter) Cache() *cache.Service {
	return a.cache
}

// Analyzer returns nil when the analyzer is disabled
func (a *IdentityDataAdapter) Analyzer() *performance.Analyzer {
	return a.analyzer
}

func (a *IdentityDataAdapter) MetricsRegistry() *prometheus.Registry {
	return a.registry
}

// BeginTransaction starts a new transaction
func (a *IdentityDataAdapter) BeginTransaction(ctx context.Context) (Transaction, error) {
	if !a.isConnected() {
		return nil, fmt.Errorf("adapter not connected")
	}

	tx, err := a.postgresDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &IdentityTransaction{
		tx:     tx,
		cache:  a.cache,
		config: a.config,
		logger: a.logger,
	}, nil
}

func (a *IdentityDataAdapter) isConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Private helper methods
func (a *IdentityDataAdapter) connectPostgreSQL(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", a.config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(a.config.MaxConnections)
	db.SetMaxIdleConns(a.config.MaxIdleConnections)
	db.SetConnMaxLifetime(a.config.IdleTimeout)

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	a.logger.WithField("url", config.MaskPassword(a.config.PostgresURL)).Info("Connected to PostgreSQL")
	return db, nil
}

// connectRedis builds the client for the networked backend. An unreachable
// server is logged but not fatal: the cache service treats every failed call
// as a miss, and the client reconnects on its own once the server is back.
func (a *IdentityDataAdapter) connectRedis(ctx context.Context) (*redis.Client, error) {
	opt, err := redis.ParseURL(a.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if a.config.RedisDB >= 0 {
		opt.DB = a.config.RedisDB
	}

	// Configure connection pool
	opt.PoolSize = a.config.MaxConnections
	opt.MinIdleConns = a.config.MaxIdleConnections
	opt.DialTimeout = a.config.ConnectionTimeout
	opt.ReadTimeout = a.config.ConnectionTimeout
	opt.WriteTimeout = a.config.ConnectionTimeout

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"url": config.MaskPassword(a.config.RedisURL),
			"db":  opt.DB,
		}).Error("Redis unreachable at startup; cache reads will miss until it recovers")
		return client, nil
	}

	a.logger.WithField("db", opt.DB).Info("Connected to Redis")
	return client, nil
}

// IdentityTransaction implements the Transaction interface
type IdentityTransaction struct {
	tx     *sql.Tx
	cache  *cache.Service
	config *config.RepositoryConfig
	logger *logrus.Logger

	touchedRoles  bool
	touchedTokens bool
}

// Commit commits and then drops the cached namespaces the transaction could have changed
func (t *IdentityTransaction) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if t.touchedRoles {
		if err := t.cache.RemoveByTag(ctx, caching.RolesTag); err != nil {
			t.logger.WithError(err).Warn("Failed to invalidate roles after commit")
		}
	}
	if t.touchedTokens {
		if err := t.cache.RemoveByTag(ctx, caching.TokensTag); err != nil {
			t.logger.WithError(err).Warn("Failed to invalidate refresh tokens after commit")
		}
	}
	return nil
}

func (t *IdentityTransaction) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}

func (t *IdentityTransaction) Roles() interfaces.RoleRepository {
	t.touchedRoles = true
	return postgres.NewRoleRepository(t.tx, t.logger, t.config)
}

func (t *IdentityTransaction) RefreshTokens() interfaces.RefreshTokenRepository {
	t.touchedTokens = true
	return postgres.NewRefreshTokenRepository(t.tx, t.logger, t.config)
}
