// Package caching provides cache-aside decorators for the identity repositories.
// Decorators satisfy the same interfaces as the repositories they wrap, so
// callers cannot tell a cached answer from a fresh one.
package caching

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// TTLPolicy assigns lifetimes per operation class. Lists and aggregates are
// more sensitive to staleness than single-entity lookups.
type TTLPolicy struct {
	Entity    time.Duration
	List      time.Duration
	Aggregate time.Duration
}

var (
	RoleTTLs = TTLPolicy{
		Entity:    15 * time.Minute,
		List:      5 * time.Minute,
		Aggregate: 2 * time.Minute,
	}
	TokenTTLs = TTLPolicy{
		Entity:    10 * time.Minute,
		List:      3 * time.Minute,
		Aggregate: 2 * time.Minute,
	}
	// user reads are refreshed by warm-up rather than by invalidation
	UserTTLs = TTLPolicy{
		List:      15 * time.Minute,
		Aggregate: 15 * time.Minute,
	}
)

// Role keys and tags
const (
	RolesTag           = "roles"
	RolesAllKey        = "roles:all"
	RolesActiveKey     = "roles:active"
	RolesPagedPattern  = "roles:paged:*"
	RolesCountPattern  = "roles:count:*"
	RolesExistsPattern = "roles:exists:*"
	RolesUserPattern   = "roles:user:*"
)

func RoleTag(id string) string {
	return "role:" + id
}

func RoleIDKey(id string) string {
	return "roles:id:" + id
}

func RoleNameKey(name string) string {
	return "roles:name:" + models.NormalizeRoleName(name)
}

func RoleExistsKey(name string) string {
	return "roles:exists:name:" + models.NormalizeRoleName(name)
}

// RolePagedKey keeps the search text as the trailing q= segment so the
// analyzer can fold every search into one pattern
func RolePagedKey(q models.RoleQuery) string {
	q = q.Normalize()
	return fmt.Sprintf("roles:paged:%d:%d:%t:q=%s", q.Page, q.PageSize, q.ActiveOnly, q.Search)
}

func RoleCountKey(activeOnly bool) string {
	if activeOnly {
		return "roles:count:active"
	}
	return "roles:count:all"
}

func UserRolesKey(userID string) string {
	return "roles:user:" + userID
}

// Refresh token keys and tags
const (
	TokensTag              = "tokens"
	TokensPagedPattern     = "tokens:paged:*"
	TokensUserListsPattern = "tokens:user:*"
)

func TokenUserTag(userID string) string {
	return "tokens:user:" + userID
}

func TokenIDKey(id string) string {
	return "tokens:id:" + id
}

// TokenValueKey keys a token lookup by digest so token secrets never appear in key space
func TokenValueKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "tokens:value:" + hex.EncodeToString(sum[:])
}

func TokenActiveKey(userID string) string {
	return "tokens:user:" + userID + ":active"
}

func TokenCountKey(userID string) string {
	return "tokens:user:" + userID + ":count"
}

func TokenPagedKey(q models.TokenQuery) string {
	q = q.Normalize()
	return "tokens:paged:" + q.UserID + ":" + strconv.Itoa(q.Page) + ":" + strconv.Itoa(q.PageSize)
}

func TokenUserPagedPattern(userID string) string {
	return "tokens:paged:" + userID + ":*"
}

// User keys and warm-up keys
const (
	UsersTag           = "users"
	ActiveUserCountKey = "users:count:active"
	SystemMetadataKey  = "system:metadata"
)

func ActiveUsersPageKey(page, pageSize int) string {
	return fmt.Sprintf("users:active:paged:%d:%d", page, pageSize)
}
