package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// MockRoleRepository is a testify mock of interfaces.RoleRepository
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) Create(ctx context.Context, role *models.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	args := m.Called(ctx, id)
	role, _ := args.Get(0).(*models.Role)
	return role, args.Error(1)
}

func (m *MockRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	args := m.Called(ctx, name)
	role, _ := args.Get(0).(*models.Role)
	return role, args.Error(1)
}

func (m *MockRoleRepository) Update(ctx context.Context, role *models.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRoleRepository) GetAll(ctx context.Context) ([]*models.Role, error) {
	args := m.Called(ctx)
	roles, _ := args.Get(0).([]*models.Role)
	return roles, args.Error(1)
}

func (m *MockRoleRepository) GetActive(ctx context.Context) ([]*models.Role, error) {
	args := m.Called(ctx)
	roles, _ := args.Get(0).([]*models.Role)
	return roles, args.Error(1)
}

func (m *MockRoleRepository) GetPaged(ctx context.Context, query models.RoleQuery) (*models.PagedResult[*models.Role], error) {
	args := m.Called(ctx, query)
	page, _ := args.Get(0).(*models.PagedResult[*models.Role])
	return page, args.Error(1)
}

func (m *MockRoleRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoleRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Role, error) {
	args := m.Called(ctx, userID)
	roles, _ := args.Get(0).([]*models.Role)
	return roles, args.Error(1)
}

func (m *MockRoleRepository) AssignToUser(ctx context.Context, userID, roleID string) error {
	return m.Called(ctx, userID, roleID).Error(0)
}

func (m *MockRoleRepository) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	return m.Called(ctx, userID, roleID).Error(0)
}

// MockRefreshTokenRepository is a testify mock of interfaces.RefreshTokenRepository
type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockRefreshTokenRepository) GetByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	args := m.Called(ctx, id)
	token, _ := args.Get(0).(*models.RefreshToken)
	return token, args.Error(1)
}

func (m *MockRefreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	args := m.Called(ctx, token)
	result, _ := args.Get(0).(*models.RefreshToken)
	return result, args.Error(1)
}

func (m *MockRefreshTokenRepository) Update(ctx context.Context, token *models.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockRefreshTokenRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRefreshTokenRepository) GetActiveByUserID(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]*models.RefreshToken)
	return tokens, args.Error(1)
}

func (m *MockRefreshTokenRepository) GetPaged(ctx context.Context, query models.TokenQuery) (*models.PagedResult[*models.RefreshToken], error) {
	args := m.Called(ctx, query)
	page, _ := args.Get(0).(*models.PagedResult[*models.RefreshToken])
	return page, args.Error(1)
}

func (m *MockRefreshTokenRepository) CountActiveByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenRepository) Revoke(ctx context.Context, token, revokedByIP, reason string) error {
	return m.Called(ctx, token, revokedByIP, reason).Error(0)
}

func (m *MockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID, revokedByIP, reason string) (int64, error) {
	args := m.Called(ctx, userID, revokedByIP, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserRepository is a testify mock of interfaces.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CountActive(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) GetActivePaged(ctx context.Context, page, pageSize int) (*models.PagedResult[*models.UserSummary], error) {
	args := m.Called(ctx, page, pageSize)
	result, _ := args.Get(0).(*models.PagedResult[*models.UserSummary])
	return result, args.Error(1)
}
