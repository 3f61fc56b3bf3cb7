package models

import (
	"time"
)

// UserSummary is the read-only projection of a user needed by cache warm-up
type UserSummary struct {
	ID          string     `json:"id"`
	UserName    string     `json:"userName"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// SystemMetadata summarises the deployment for dashboards and health pages
type SystemMetadata struct {
	Version         string    `json:"version"`
	Environment     string    `json:"environment"`
	CacheProvider   string    `json:"cacheProvider"`
	RoleCount       int64     `json:"roleCount"`
	ActiveRoleCount int64     `json:"activeRoleCount"`
	ActiveUserCount int64     `json:"activeUserCount"`
	GeneratedAt     time.Time `json:"generatedAt"`
}
