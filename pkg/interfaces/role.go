package interfaces

import (
	"context"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// RoleRepository defines the interface for role persistence
type RoleRepository interface {
	// Core CRUD operations
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id string) error

	// Query operations
	GetAll(ctx context.Context) ([]*models.Role, error)
	GetActive(ctx context.Context) ([]*models.Role, error)
	GetPaged(ctx context.Context, query models.RoleQuery) (*models.PagedResult[*models.Role], error)
	Count(ctx context.Context, activeOnly bool) (int64, error)
	ExistsByName(ctx context.Context, name string) (bool, error)

	// User assignment
	GetByUserID(ctx context.Context, userID string) ([]*models.Role, error)
	AssignToUser(ctx context.Context, userID, roleID string) error
	RemoveFromUser(ctx context.Context, userID, roleID string) error
}
