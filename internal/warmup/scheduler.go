// Package warmup pre-populates hot cache entries off the request path.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/caching"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// SystemMetadataTTL is the lifetime of the one entry the scheduler owns outright
const SystemMetadataTTL = time.Hour

var (
	ErrWarmupInProgress = errors.New("cache warm-up pass already running")
	ErrWarmupFailed     = errors.New("every cache warm-up family failed")
)

// Result describes one warm-up pass
type Result struct {
	Warmed   []string
	Failed   map[string]error
	Duration time.Duration
}

type family struct {
	name string
	run  func(ctx context.Context) error
}

// Scheduler runs warm-up passes on a fixed interval. At most one pass runs at a time.
type Scheduler struct {
	cache *cache.Service
	roles interfaces.RoleRepository
	users interfaces.UserRepository

	initialDelay time.Duration
	interval     time.Duration
	retryDelay   time.Duration
	pageSize     int
	version      string
	environment  string

	logger *logrus.Logger

	passRunning atomic.Bool
	passes      atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler builds a scheduler. roles and users should be the cache-aside
// decorators so that warmed entries land under the keys request handlers read.
func NewScheduler(cfg *config.RepositoryConfig, svc *cache.Service, roles interfaces.RoleRepository, users interfaces.UserRepository, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	pageSize := cfg.WarmupPageSize
	if pageSize < 1 {
		pageSize = models.DefaultPageSize
	}

	return &Scheduler{
		cache:        svc,
		roles:        roles,
		users:        users,
		initialDelay: cfg.WarmupInitialDelay,
		interval:     cfg.WarmupInterval,
		retryDelay:   cfg.WarmupRetryDelay,
		pageSize:     pageSize,
		version:      cfg.Version,
		environment:  cfg.Environment,
		logger:       logger,
	}
}

// Start launches the background loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx, s.done)

	s.logger.WithFields(logrus.Fields{
		"initial_delay": s.initialDelay,
		"interval":      s.interval,
		"retry_delay":   s.retryDelay,
	}).Info("Cache warm-up scheduler started")
}

// Stop cancels the loop and waits for it to exit. A pass in flight finishes its
// current cache call and stops before the next family.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.logger.Info("Cache warm-up scheduler stopped")
}

// Passes returns how many passes have completed, successful or not
func (s *Scheduler) Passes() int64 {
	return s.passes.Load()
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if !sleep(ctx, s.initialDelay) {
		return
	}

	for {
		delay := s.interval
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, ErrWarmupInProgress) {
				delay = s.retryDelay
				s.logger.WithError(err).WithField("retry_in", delay).Warn("Cache warm-up pass failed")
			}
		}

		if !sleep(ctx, delay) {
			return
		}
	}
}

// RunOnce executes a single pass. Each key family runs inside its own failure
// boundary; the pass fails only when every family fails.
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	if !s.passRunning.CompareAndSwap(false, true) {
		return nil, ErrWarmupInProgress
	}
	defer s.passRunning.Store(false)
	defer s.passes.Add(1)

	start := time.Now()
	families := s.families()
	errs := make([]error, len(families))

	var g errgroup.Group
	for i, f := range families {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			if err := f.run(ctx); err != nil {
				errs[i] = err
				s.logger.WithError(err).WithField("family", f.name).Warn("Cache warm-up family failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Failed: make(map[string]error), Duration: time.Since(start)}
	for i, f := range families {
		if errs[i] != nil {
			result.Failed[f.name] = errs[i]
			continue
		}
		result.Warmed = append(result.Warmed, f.name)
	}

	s.logger.WithFields(logrus.Fields{
		"warmed":   len(result.Warmed),
		"failed":   len(result.Failed),
		"duration": result.Duration,
	}).Info("Cache warm-up pass completed")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(result.Warmed) == 0 {
		return result, ErrWarmupFailed
	}
	return result, nil
}

func (s *Scheduler) families() []family {
	return []family{
		{name: "role-counts", run: s.warmRoleCounts},
		{name: "active-roles", run: s.warmActiveRoles},
		{name: "active-user-count", run: s.warmActiveUserCount},
		{name: "active-users", run: s.warmActiveUsers},
		{name: "system-metadata", run: s.warmSystemMetadata},
	}
}

func (s *Scheduler) warmRoleCounts(ctx context.Context) error {
	if _, err := s.roles.Count(ctx, false); err != nil {
		return fmt.Errorf("failed to count roles: %w", err)
	}
	if _, err := s.roles.Count(ctx, true); err != nil {
		return fmt.Errorf("failed to count active roles: %w", err)
	}
	return nil
}

func (s *Scheduler) warmActiveRoles(ctx context.Context) error {
	if _, err := s.roles.GetPaged(ctx, models.RoleQuery{Page: 1, PageSize: s.pageSize, ActiveOnly: true}); err != nil {
		return fmt.Errorf("failed to load first page of active roles: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := s.roles.GetActive(ctx); err != nil {
		return fmt.Errorf("failed to load active roles: %w", err)
	}
	return nil
}

func (s *Scheduler) warmActiveUserCount(ctx context.Context) error {
	if _, err := s.users.CountActive(ctx); err != nil {
		return fmt.Errorf("failed to count active users: %w", err)
	}
	return nil
}

func (s *Scheduler) warmActiveUsers(ctx context.Context) error {
	if _, err := s.users.GetActivePaged(ctx, 1, s.pageSize); err != nil {
		return fmt.Errorf("failed to load first page of active users: %w", err)
	}
	return nil
}

func (s *Scheduler) warmSystemMetadata(ctx context.Context) error {
	roleCount, err := s.roles.Count(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to count roles: %w", err)
	}
	activeRoles, err := s.roles.Count(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to count active roles: %w", err)
	}
	activeUsers, err := s.users.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active users: %w", err)
	}

	metadata := &models.SystemMetadata{
		Version:         s.version,
		Environment:     s.environment,
		CacheProvider:   s.cache.Provider(),
		RoleCount:       roleCount,
		ActiveRoleCount: activeRoles,
		ActiveUserCount: activeUsers,
		GeneratedAt:     time.Now().UTC(),
	}
	return s.cache.Set(ctx, caching.SystemMetadataKey, metadata, SystemMetadataTTL)
}

// sleep waits for d or until ctx is done; it reports whether the wait completed
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
