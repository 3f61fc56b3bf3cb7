package caching

import (
	"context"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// CachedUserRepository serves the active-user aggregates that dashboards and
// warm-up share. Users are written elsewhere, so entries expire instead of
// being invalidated.
type CachedUserRepository struct {
	inner interfaces.UserRepository
	cache *cache.Service
	ttl   TTLPolicy
}

var _ interfaces.UserRepository = (*CachedUserRepository)(nil)

func NewCachedUserRepository(inner interfaces.UserRepository, svc *cache.Service) *CachedUserRepository {
	return &CachedUserRepository{
		inner: inner,
		cache: svc,
		ttl:   UserTTLs,
	}
}

func (r *CachedUserRepository) CountActive(ctx context.Context) (int64, error) {
	opts := cache.LoadOptions{TTL: r.ttl.Aggregate, Tags: []string{UsersTag}}
	return cache.GetOrLoad(ctx, r.cache, ActiveUserCountKey, opts, func(ctx context.Context) (int64, bool, error) {
		count, err := r.inner.CountActive(ctx)
		return count, err == nil, err
	})
}

func (r *CachedUserRepository) GetActivePaged(ctx context.Context, page, pageSize int) (*models.PagedResult[*models.UserSummary], error) {
	opts := cache.LoadOptions{TTL: r.ttl.List, Tags: []string{UsersTag}}
	return cache.GetOrLoad(ctx, r.cache, ActiveUsersPageKey(page, pageSize), opts, func(ctx context.Context) (*models.PagedResult[*models.UserSummary], bool, error) {
		result, err := r.inner.GetActivePaged(ctx, page, pageSize)
		return result, result != nil && len(result.Items) > 0, err
	})
}

