package caching

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// CachedRefreshTokenRepository decorates a RefreshTokenRepository with cache-aside reads.
// Every entry is tagged with its owner so a user's whole token view can be dropped at once.
type CachedRefreshTokenRepository struct {
	inner  interfaces.RefreshTokenRepository
	cache  *cache.Service
	ttl    TTLPolicy
	logger *logrus.Logger
}

var _ interfaces.RefreshTokenRepository = (*CachedRefreshTokenRepository)(nil)

func NewCachedRefreshTokenRepository(inner interfaces.RefreshTokenRepository, svc *cache.Service, logger *logrus.Logger) *CachedRefreshTokenRepository {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}
	return &CachedRefreshTokenRepository{
		inner:  inner,
		cache:  svc,
		ttl:    TokenTTLs,
		logger: logger,
	}
}

func tokenOwnerTags(value any) []string {
	if token, ok := value.(*models.RefreshToken); ok && token != nil {
		return []string{TokenUserTag(token.UserID)}
	}
	return nil
}

func (r *CachedRefreshTokenRepository) userOptions(userID string, ttl time.Duration) cache.LoadOptions {
	return cache.LoadOptions{TTL: ttl, Tags: []string{TokensTag, TokenUserTag(userID)}}
}

func (r *CachedRefreshTokenRepository) GetByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	opts := cache.LoadOptions{TTL: r.ttl.Entity, Tags: []string{TokensTag}, TagsFrom: tokenOwnerTags}
	return cache.GetOrLoad(ctx, r.cache, TokenIDKey(id), opts, func(ctx context.Context) (*models.RefreshToken, bool, error) {
		token, err := r.inner.GetByID(ctx, id)
		return token, token != nil, err
	})
}

func (r *CachedRefreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	opts := cache.LoadOptions{TTL: r.ttl.Entity, Tags: []string{TokensTag}, TagsFrom: tokenOwnerTags}
	return cache.GetOrLoad(ctx, r.cache, TokenValueKey(token), opts, func(ctx context.Context) (*models.RefreshToken, bool, error) {
		found, err := r.inner.GetByToken(ctx, token)
		return found, found != nil, err
	})
}

func (r *CachedRefreshTokenRepository) GetActiveByUserID(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	return cache.GetOrLoad(ctx, r.cache, TokenActiveKey(userID), r.userOptions(userID, r.ttl.List), func(ctx context.Context) ([]*models.RefreshToken, bool, error) {
		tokens, err := r.inner.GetActiveByUserID(ctx, userID)
		return tokens, len(tokens) > 0, err
	})
}

func (r *CachedRefreshTokenRepository) GetPaged(ctx context.Context, query models.TokenQuery) (*models.PagedResult[*models.RefreshToken], error) {
	query = query.Normalize()
	return cache.GetOrLoad(ctx, r.cache, TokenPagedKey(query), r.userOptions(query.UserID, r.ttl.List), func(ctx context.Context) (*models.PagedResult[*models.RefreshToken], bool, error) {
		page, err := r.inner.GetPaged(ctx, query)
		return page, page != nil && len(page.Items) > 0, err
	})
}

func (r *CachedRefreshTokenRepository) CountActiveByUserID(ctx context.Context, userID string) (int64, error) {
	return cache.GetOrLoad(ctx, r.cache, TokenCountKey(userID), r.userOptions(userID, r.ttl.Aggregate), func(ctx context.Context) (int64, bool, error) {
		count, err := r.inner.CountActiveByUserID(ctx, userID)
		return count, err == nil, err
	})
}

func (r *CachedRefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	err := r.inner.Create(ctx, token)
	invalidate(ctx, r.cache, r.logger, "token.create", r.tokenInvalidation(token), err)
	return err
}

func (r *CachedRefreshTokenRepository) Update(ctx context.Context, token *models.RefreshToken) error {
	err := r.inner.Update(ctx, token)
	invalidate(ctx, r.cache, r.logger, "token.update", r.tokenInvalidation(token), err)
	return err
}

// Delete resolves the token's owner first so the owner's lists can be dropped.
// When the owner cannot be resolved every token entry is dropped instead.
func (r *CachedRefreshTokenRepository) Delete(ctx context.Context, id string) error {
	existing, lookupErr := r.inner.GetByID(ctx, id)
	err := r.inner.Delete(ctx, id)

	var inv invalidation
	switch {
	case lookupErr == nil && existing != nil:
		inv = r.tokenInvalidation(existing)
	case errors.Is(lookupErr, models.ErrNotFound):
		inv = invalidation{keys: []string{TokenIDKey(id)}}
	default:
		inv = invalidation{keys: []string{TokenIDKey(id)}, tags: []string{TokensTag}}
	}

	invalidate(ctx, r.cache, r.logger, "token.delete", inv, err)
	return err
}

// Revoke drops the token's own keys and every list of its owner; status and
// counts are derived from the record and must not outlive it.
func (r *CachedRefreshTokenRepository) Revoke(ctx context.Context, token, revokedByIP, reason string) error {
	existing, lookupErr := r.inner.GetByToken(ctx, token)
	err := r.inner.Revoke(ctx, token, revokedByIP, reason)

	inv := invalidation{keys: []string{TokenValueKey(token)}}
	if lookupErr == nil && existing != nil {
		owner := r.tokenInvalidation(existing)
		inv.keys = append(inv.keys, owner.keys...)
		inv.patterns = owner.patterns
		inv.tags = owner.tags
	} else {
		r.logger.WithError(lookupErr).Debug("Token owner unknown, invalidating all token lists")
		inv.patterns = []string{TokensUserListsPattern, TokensPagedPattern}
	}

	invalidate(ctx, r.cache, r.logger, "token.revoke", inv, err)
	return err
}

func (r *CachedRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID, revokedByIP, reason string) (int64, error) {
	revoked, err := r.inner.RevokeAllForUser(ctx, userID, revokedByIP, reason)
	invalidate(ctx, r.cache, r.logger, "token.revoke_all", r.userInvalidation(userID), err)
	return revoked, err
}

// DeleteExpired can touch any user, so the whole token namespace is dropped
func (r *CachedRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := r.inner.DeleteExpired(ctx, before)
	invalidate(ctx, r.cache, r.logger, "token.delete_expired", invalidation{
		tags:     []string{TokensTag},
		patterns: []string{TokensUserListsPattern, TokensPagedPattern},
	}, err)
	return deleted, err
}

func (r *CachedRefreshTokenRepository) tokenInvalidation(token *models.RefreshToken) invalidation {
	if token == nil {
		return invalidation{}
	}
	inv := r.userInvalidation(token.UserID)
	inv.keys = append(inv.keys, TokenIDKey(token.ID))
	if token.Token != "" {
		inv.keys = append(inv.keys, TokenValueKey(token.Token))
	}
	return inv
}

func (r *CachedRefreshTokenRepository) userInvalidation(userID string) invalidation {
	return invalidation{
		keys:     []string{TokenActiveKey(userID), TokenCountKey(userID)},
		patterns: []string{TokenUserPagedPattern(userID)},
		tags:     []string{TokenUserTag(userID)},
	}
}
