package interfaces

import (
	"context"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// UserRepository exposes the user reads needed by cache warm-up
type UserRepository interface {
	CountActive(ctx context.Context) (int64, error)
	GetActivePaged(ctx context.Context, page, pageSize int) (*models.PagedResult[*models.UserSummary], error)
}
