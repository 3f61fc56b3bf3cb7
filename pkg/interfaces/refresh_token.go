package interfaces

import (
	"context"
	"time"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// RefreshTokenRepository defines the interface for refresh token persistence
type RefreshTokenRepository interface {
	// Core CRUD operations
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByID(ctx context.Context, id string) (*models.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Update(ctx context.Context, token *models.RefreshToken) error
	Delete(ctx context.Context, id string) error

	// Query operations
	GetActiveByUserID(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	GetPaged(ctx context.Context, query models.TokenQuery) (*models.PagedResult[*models.RefreshToken], error)
	CountActiveByUserID(ctx context.Context, userID string) (int64, error)

	// Revocation
	Revoke(ctx context.Context, token, revokedByIP, reason string) error
	RevokeAllForUser(ctx context.Context, userID, revokedByIP, reason string) (int64, error)

	// Cleanup operations
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
