package models

import (
	"time"
)

// RefreshToken represents a long-lived token used to mint new access tokens
type RefreshToken struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Token           string     `json:"token"`
	ExpiresAt       time.Time  `json:"expiresAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	CreatedByIP     string     `json:"createdByIp"`
	RevokedAt       *time.Time `json:"revokedAt,omitempty"`
	RevokedByIP     string     `json:"revokedByIp,omitempty"`
	ReasonRevoked   string     `json:"reasonRevoked,omitempty"`
	ReplacedByToken string     `json:"replacedByToken,omitempty"`
}

// IsExpired reports whether the token is past its expiry
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRevoked reports whether the token has been revoked
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the token can still be exchanged
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// TokenQuery represents paging parameters for a user's refresh tokens
type TokenQuery struct {
	UserID   string
	Page     int
	PageSize int
}

// Normalize applies paging defaults
func (q TokenQuery) Normalize() TokenQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}
