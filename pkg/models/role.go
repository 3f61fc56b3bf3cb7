package models

import (
	"strings"
	"time"
)

// Role represents an authorization role that can be assigned to users
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalizedName"`
	Description    string    `json:"description"`
	Permissions    []string  `json:"permissions"`
	IsActive       bool      `json:"isActive"`
	IsSystem       bool      `json:"isSystem"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NormalizeRoleName returns the canonical lookup form of a role name
func NormalizeRoleName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// RoleQuery represents paging and filter parameters for role listings
type RoleQuery struct {
	Page       int
	PageSize   int
	ActiveOnly bool
	Search     string
}

// Normalize applies paging defaults
func (q RoleQuery) Normalize() RoleQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}
