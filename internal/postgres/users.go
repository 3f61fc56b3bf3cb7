package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

// UserPostgresRepository implements the user reads needed by cache warm-up
type UserPostgresRepository struct {
	db     DBExecutor
	logger *logrus.Logger
	config *config.RepositoryConfig
}

var _ interfaces.UserRepository = (*UserPostgresRepository)(nil)

// NewUserRepository creates a new PostgreSQL-based user repository
func NewUserRepository(db DBExecutor, logger *logrus.Logger, cfg *config.RepositoryConfig) *UserPostgresRepository {
	return &UserPostgresRepository{
		db:     db,
		logger: logger,
		config: cfg,
	}
}

// CountActive returns the number of active users
func (r *UserPostgresRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identity.users WHERE is_active = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

// GetActivePaged returns one page of active users ordered by user name
func (r *UserPostgresRepository) GetActivePaged(ctx context.Context, page, pageSize int) (*models.PagedResult[*models.UserSummary], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > models.MaxPageSize {
		pageSize = models.DefaultPageSize
	}

	total, err := r.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_name, email, is_active, created_at, last_login_at
		FROM identity.users
		WHERE is_active = TRUE
		ORDER BY user_name ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, pageSize, models.Offset(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var users []*models.UserSummary
	for rows.Next() {
		user := &models.UserSummary{}
		var lastLogin sql.NullTime
		if err := rows.Scan(&user.ID, &user.UserName, &user.Email, &user.IsActive, &user.CreatedAt, &lastLogin); err != nil {
			r.logger.WithError(err).Warn("Failed to scan user row")
			continue
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			user.LastLoginAt = &t
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return &models.PagedResult[*models.UserSummary]{
		Items:      users,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}
