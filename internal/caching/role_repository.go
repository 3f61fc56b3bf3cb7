package caching

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// CachedRoleRepository decorates a RoleRepository with cache-aside reads
type CachedRoleRepository struct {
	inner  interfaces.RoleRepository
	cache  *cache.Service
	ttl    TTLPolicy
	logger *logrus.Logger
}

var _ interfaces.RoleRepository = (*CachedRoleRepository)(nil)

func NewCachedRoleRepository(inner interfaces.RoleRepository, svc *cache.Service, logger *logrus.Logger) *CachedRoleRepository {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}
	return &CachedRoleRepository{
		inner:  inner,
		cache:  svc,
		ttl:    RoleTTLs,
		logger: logger,
	}
}

func roleTags(value any) []string {
	if role, ok := value.(*models.Role); ok && role != nil {
		return []string{RoleTag(role.ID)}
	}
	return nil
}

func roleIdentity(role *models.Role) (string, string) {
	if role == nil {
		return "", ""
	}
	return role.ID, role.Name
}

func (r *CachedRoleRepository) entityOptions() cache.LoadOptions {
	return cache.LoadOptions{TTL: r.ttl.Entity, Tags: []string{RolesTag}, TagsFrom: roleTags}
}

func (r *CachedRoleRepository) listOptions() cache.LoadOptions {
	return cache.LoadOptions{TTL: r.ttl.List, Tags: []string{RolesTag}}
}

func (r *CachedRoleRepository) aggregateOptions() cache.LoadOptions {
	return cache.LoadOptions{TTL: r.ttl.Aggregate, Tags: []string{RolesTag}}
}

func (r *CachedRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	return cache.GetOrLoad(ctx, r.cache, RoleIDKey(id), r.entityOptions(), func(ctx context.Context) (*models.Role, bool, error) {
		role, err := r.inner.GetByID(ctx, id)
		return role, role != nil, err
	})
}

func (r *CachedRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	return cache.GetOrLoad(ctx, r.cache, RoleNameKey(name), r.entityOptions(), func(ctx context.Context) (*models.Role, bool, error) {
		role, err := r.inner.GetByName(ctx, name)
		return role, role != nil, err
	})
}

func (r *CachedRoleRepository) GetAll(ctx context.Context) ([]*models.Role, error) {
	return cache.GetOrLoad(ctx, r.cache, RolesAllKey, r.listOptions(), func(ctx context.Context) ([]*models.Role, bool, error) {
		roles, err := r.inner.GetAll(ctx)
		return roles, len(roles) > 0, err
	})
}

func (r *CachedRoleRepository) GetActive(ctx context.Context) ([]*models.Role, error) {
	return cache.GetOrLoad(ctx, r.cache, RolesActiveKey, r.listOptions(), func(ctx context.Context) ([]*models.Role, bool, error) {
		roles, err := r.inner.GetActive(ctx)
		return roles, len(roles) > 0, err
	})
}

func (r *CachedRoleRepository) GetPaged(ctx context.Context, query models.RoleQuery) (*models.PagedResult[*models.Role], error) {
	query = query.Normalize()
	return cache.GetOrLoad(ctx, r.cache, RolePagedKey(query), r.listOptions(), func(ctx context.Context) (*models.PagedResult[*models.Role], bool, error) {
		page, err := r.inner.GetPaged(ctx, query)
		return page, page != nil && len(page.Items) > 0, err
	})
}

// Count caches zero as well; an empty table is a valid aggregate.
func (r *CachedRoleRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	return cache.GetOrLoad(ctx, r.cache, RoleCountKey(activeOnly), r.aggregateOptions(), func(ctx context.Context) (int64, bool, error) {
		count, err := r.inner.Count(ctx, activeOnly)
		return count, err == nil, err
	})
}

func (r *CachedRoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return cache.GetOrLoad(ctx, r.cache, RoleExistsKey(name), r.entityOptions(), func(ctx context.Context) (bool, bool, error) {
		exists, err := r.inner.ExistsByName(ctx, name)
		return exists, err == nil, err
	})
}

func (r *CachedRoleRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Role, error) {
	return cache.GetOrLoad(ctx, r.cache, UserRolesKey(userID), r.listOptions(), func(ctx context.Context) ([]*models.Role, bool, error) {
		roles, err := r.inner.GetByUserID(ctx, userID)
		return roles, len(roles) > 0, err
	})
}

func (r *CachedRoleRepository) Create(ctx context.Context, role *models.Role) error {
	err := r.inner.Create(ctx, role)
	id, name := roleIdentity(role)
	invalidate(ctx, r.cache, r.logger, "role.create", r.roleInvalidation(id, name, false), err)
	return err
}

func (r *CachedRoleRepository) Update(ctx context.Context, role *models.Role) error {
	err := r.inner.Update(ctx, role)
	id, name := roleIdentity(role)
	invalidate(ctx, r.cache, r.logger, "role.update", r.roleInvalidation(id, name, true), err)
	return err
}

func (r *CachedRoleRepository) Delete(ctx context.Context, id string) error {
	err := r.inner.Delete(ctx, id)
	invalidate(ctx, r.cache, r.logger, "role.delete", r.roleInvalidation(id, "", true), err)
	return err
}

func (r *CachedRoleRepository) AssignToUser(ctx context.Context, userID, roleID string) error {
	err := r.inner.AssignToUser(ctx, userID, roleID)
	invalidate(ctx, r.cache, r.logger, "role.assign", invalidation{keys: []string{UserRolesKey(userID)}}, err)
	return err
}

func (r *CachedRoleRepository) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	err := r.inner.RemoveFromUser(ctx, userID, roleID)
	invalidate(ctx, r.cache, r.logger, "role.unassign", invalidation{keys: []string{UserRolesKey(userID)}}, err)
	return err
}

// roleInvalidation covers every template that can hold a view of the role.
// The entity tag catches a by-name entry cached under a name the role no
// longer has; includeUserLists is set when existing assignments embed the role.
func (r *CachedRoleRepository) roleInvalidation(id, name string, includeUserLists bool) invalidation {
	inv := invalidation{
		keys:     []string{RoleIDKey(id), RolesAllKey, RolesActiveKey},
		patterns: []string{RolesPagedPattern, RolesCountPattern, RolesExistsPattern},
		tags:     []string{RoleTag(id)},
	}
	if name != "" {
		inv.keys = append(inv.keys, RoleNameKey(name))
	}
	if includeUserLists {
		inv.patterns = append(inv.patterns, RolesUserPattern)
	}
	return inv
}
