package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

const roleColumns = `id, name, normalized_name, description, permissions, is_active, is_system, created_at, updated_at`

// RolePostgresRepository implements RoleRepository using PostgreSQL
type RolePostgresRepository struct {
	db     DBExecutor
	logger *logrus.Logger
	config *config.RepositoryConfig
}

var _ interfaces.RoleRepository = (*RolePostgresRepository)(nil)

// NewRoleRepository creates a new PostgreSQL-based role repository
func NewRoleRepository(db DBExecutor, logger *logrus.Logger, cfg *config.RepositoryConfig) *RolePostgresRepository {
	return &RolePostgresRepository{
		db:     db,
		logger: logger,
		config: cfg,
	}
}

func scanRole(row rowScanner) (*models.Role, error) {
	role := &models.Role{}
	var description sql.NullString
	var permissions pq.StringArray

	err := row.Scan(
		&role.ID, &role.Name, &role.NormalizedName, &description, &permissions,
		&role.IsActive, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, err
	}

	role.Description = description.String
	role.Permissions = []string(permissions)
	return role, nil
}

func (r *RolePostgresRepository) queryRoles(ctx context.Context, query string, args ...interface{}) ([]*models.Role, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			r.logger.WithError(err).Warn("Failed to scan role row")
			continue
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}

	return roles, nil
}

// Create inserts a new role
func (r *RolePostgresRepository) Create(ctx context.Context, role *models.Role) error {
	if role == nil {
		return fmt.Errorf("failed to create role: role is nil")
	}

	query := `
		INSERT INTO identity.roles (` + roleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now
	role.NormalizedName = models.NormalizeRoleName(role.Name)

	_, err := r.db.ExecContext(ctx, query,
		role.ID, role.Name, role.NormalizedName, role.Description, pq.Array(role.Permissions),
		role.IsActive, role.IsSystem, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"role_id": role.ID,
		"name":    role.Name,
	}).Debug("Role created")

	return nil
}

// GetByID retrieves a role by ID
func (r *RolePostgresRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM identity.roles WHERE id = $1`

	role, err := scanRole(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetByName retrieves a role by its normalized name
func (r *RolePostgresRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM identity.roles WHERE normalized_name = $1`

	role, err := scanRole(r.db.QueryRowContext(ctx, query, models.NormalizeRoleName(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %q: %w", name, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return role, nil
}

// Update modifies an existing role
func (r *RolePostgresRepository) Update(ctx context.Context, role *models.Role) error {
	if role == nil {
		return fmt.Errorf("failed to update role: role is nil")
	}

	query := `
		UPDATE identity.roles
		SET name = $2, normalized_name = $3, description = $4, permissions = $5,
		    is_active = $6, updated_at = $7
		WHERE id = $1`

	role.UpdatedAt = time.Now().UTC()
	role.NormalizedName = models.NormalizeRoleName(role.Name)

	result, err := r.db.ExecContext(ctx, query,
		role.ID, role.Name, role.NormalizedName, role.Description, pq.Array(role.Permissions),
		role.IsActive, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("role %s: %w", role.ID, models.ErrNotFound)
	}

	return nil
}

// Delete removes a role. System roles cannot be deleted.
func (r *RolePostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM identity.roles WHERE id = $1 AND is_system = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("role %s: %w", id, models.ErrNotFound)
	}

	return nil
}

// GetAll returns every role ordered by name
func (r *RolePostgresRepository) GetAll(ctx context.Context) ([]*models.Role, error) {
	return r.queryRoles(ctx, `SELECT `+roleColumns+` FROM identity.roles ORDER BY normalized_name ASC`)
}

// GetActive returns active roles ordered by name
func (r *RolePostgresRepository) GetActive(ctx context.Context) ([]*models.Role, error) {
	return r.queryRoles(ctx, `SELECT `+roleColumns+` FROM identity.roles WHERE is_active = TRUE ORDER BY normalized_name ASC`)
}

// GetPaged returns one page of roles matching the query
func (r *RolePostgresRepository) GetPaged(ctx context.Context, query models.RoleQuery) (*models.PagedResult[*models.Role], error) {
	query = query.Normalize()
	where, args := buildRoleFilter(query)

	var total int64
	countQuery := `SELECT COUNT(*) FROM identity.roles` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count roles: %w", err)
	}

	pageArgs := append(append([]interface{}{}, args...), query.PageSize, models.Offset(query.Page, query.PageSize))
	pageQuery := fmt.Sprintf(`SELECT %s FROM identity.roles%s ORDER BY normalized_name ASC LIMIT $%d OFFSET $%d`,
		roleColumns, where, len(args)+1, len(args)+2)

	roles, err := r.queryRoles(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, err
	}

	return &models.PagedResult[*models.Role]{
		Items:      roles,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalCount: total,
	}, nil
}

// buildRoleFilter returns a WHERE clause and its positional arguments
func buildRoleFilter(query models.RoleQuery) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	if query.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	if query.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(normalized_name LIKE $%d OR description ILIKE $%d)", argIndex, argIndex+1))
		args = append(args, "%"+models.NormalizeRoleName(query.Search)+"%", "%"+query.Search+"%")
		argIndex += 2
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Count returns the number of roles, optionally only active ones
func (r *RolePostgresRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM identity.roles`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

// ExistsByName reports whether a role with the normalized name exists
func (r *RolePostgresRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM identity.roles WHERE normalized_name = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, models.NormalizeRoleName(name)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check role existence: %w", err)
	}
	return exists, nil
}

// GetByUserID returns the roles assigned to a user
func (r *RolePostgresRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Role, error) {
	query := `
		SELECT r.id, r.name, r.normalized_name, r.description, r.permissions,
		       r.is_active, r.is_system, r.created_at, r.updated_at
		FROM identity.roles r
		JOIN identity.user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.normalized_name ASC`

	return r.queryRoles(ctx, query, userID)
}

// AssignToUser links a role to a user; assigning twice is a no-op
func (r *RolePostgresRepository) AssignToUser(ctx context.Context, userID, roleID string) error {
	query := `
		INSERT INTO identity.user_roles (user_id, role_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, roleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"role_id": roleID,
	}).Debug("Role assigned to user")

	return nil
}

// RemoveFromUser unlinks a role from a user
func (r *RolePostgresRepository) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	query := `DELETE FROM identity.user_roles WHERE user_id = $1 AND role_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove role from user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("role %s for user %s: %w", roleID, userID, models.ErrNotFound)
	}

	return nil
}
