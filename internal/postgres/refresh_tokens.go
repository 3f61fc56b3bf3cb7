package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/interfaces"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

const tokenColumns = `id, user_id, token, expires_at, created_at, created_by_ip,
	revoked_at, revoked_by_ip, reason_revoked, replaced_by_token`

// RefreshTokenPostgresRepository implements RefreshTokenRepository using PostgreSQL
type RefreshTokenPostgresRepository struct {
	db     DBExecutor
	logger *logrus.Logger
	config *config.RepositoryConfig
	now    func() time.Time
}

var _ interfaces.RefreshTokenRepository = (*RefreshTokenPostgresRepository)(nil)

// NewRefreshTokenRepository creates a new PostgreSQL-based refresh token repository
func NewRefreshTokenRepository(db DBExecutor, logger *logrus.Logger, cfg *config.RepositoryConfig) *RefreshTokenPostgresRepository {
	return &RefreshTokenPostgresRepository{
		db:     db,
		logger: logger,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func scanToken(row rowScanner) (*models.RefreshToken, error) {
	token := &models.RefreshToken{}
	var createdByIP, revokedByIP, reason, replacedBy sql.NullString
	var revokedAt sql.NullTime

	err := row.Scan(
		&token.ID, &token.UserID, &token.Token, &token.ExpiresAt, &token.CreatedAt, &createdByIP,
		&revokedAt, &revokedByIP, &reason, &replacedBy)
	if err != nil {
		return nil, err
	}

	token.CreatedByIP = createdByIP.String
	token.RevokedByIP = revokedByIP.String
	token.ReasonRevoked = reason.String
	token.ReplacedByToken = replacedBy.String
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	return token, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *RefreshTokenPostgresRepository) queryTokens(ctx context.Context, query string, args ...interface{}) ([]*models.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.RefreshToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			r.logger.WithError(err).Warn("Failed to scan refresh token row")
			continue
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refresh token rows: %w", err)
	}

	return tokens, nil
}

// Create inserts a new refresh token
func (r *RefreshTokenPostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token == nil {
		return fmt.Errorf("failed to create refresh token: token is nil")
	}

	query := `
		INSERT INTO identity.refresh_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt, nullString(token.CreatedByIP),
		nullTime(token.RevokedAt), nullString(token.RevokedByIP), nullString(token.ReasonRevoked), nullString(token.ReplacedByToken))
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"token_id": token.ID,
		"user_id":  token.UserID,
	}).Debug("Refresh token created")

	return nil
}

// GetByID retrieves a refresh token by ID
func (r *RefreshTokenPostgresRepository) GetByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM identity.refresh_tokens WHERE id = $1`

	token, err := scanToken(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return token, nil
}

// GetByToken retrieves a refresh token by its value
func (r *RefreshTokenPostgresRepository) GetByToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM identity.refresh_tokens WHERE token = $1`

	token, err := scanToken(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get refresh token by value: %w", err)
	}
	return token, nil
}

// Update modifies an existing refresh token
func (r *RefreshTokenPostgresRepository) Update(ctx context.Context, token *models.RefreshToken) error {
	if token == nil {
		return fmt.Errorf("failed to update refresh token: token is nil")
	}

	query := `
		UPDATE identity.refresh_tokens
		SET expires_at = $2, revoked_at = $3, revoked_by_ip = $4,
		    reason_revoked = $5, replaced_by_token = $6
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		token.ID, token.ExpiresAt, nullTime(token.RevokedAt), nullString(token.RevokedByIP),
		nullString(token.ReasonRevoked), nullString(token.ReplacedByToken))
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("refresh token %s: %w", token.ID, models.ErrNotFound)
	}

	return nil
}

// Delete removes a refresh token
func (r *RefreshTokenPostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM identity.refresh_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("refresh token %s: %w", id, models.ErrNotFound)
	}

	return nil
}

// GetActiveByUserID returns the user's tokens that are neither revoked nor expired
func (r *RefreshTokenPostgresRepository) GetActiveByUserID(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM identity.refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC`

	return r.queryTokens(ctx, query, userID, r.now())
}

// GetPaged returns one page of a user's tokens, newest first
func (r *RefreshTokenPostgresRepository) GetPaged(ctx context.Context, query models.TokenQuery) (*models.PagedResult[*models.RefreshToken], error) {
	query = query.Normalize()

	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identity.refresh_tokens WHERE user_id = $1`, query.UserID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count refresh tokens: %w", err)
	}

	pageQuery := `
		SELECT ` + tokenColumns + `
		FROM identity.refresh_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	tokens, err := r.queryTokens(ctx, pageQuery, query.UserID, query.PageSize, models.Offset(query.Page, query.PageSize))
	if err != nil {
		return nil, err
	}

	return &models.PagedResult[*models.RefreshToken]{
		Items:      tokens,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalCount: total,
	}, nil
}

// CountActiveByUserID counts the user's tokens that can still be exchanged
func (r *RefreshTokenPostgresRepository) CountActiveByUserID(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM identity.refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID, r.now()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active refresh tokens: %w", err)
	}
	return count, nil
}

// Revoke marks a single token revoked. Revoking an already revoked token is reported as not found.
func (r *RefreshTokenPostgresRepository) Revoke(ctx context.Context, token, revokedByIP, reason string) error {
	query := `
		UPDATE identity.refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, reason_revoked = $4
		WHERE token = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, token, r.now(), nullString(revokedByIP), nullString(reason))
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("active refresh token: %w", models.ErrNotFound)
	}

	return nil
}

// RevokeAllForUser revokes every active token of a user and returns how many were revoked
func (r *RefreshTokenPostgresRepository) RevokeAllForUser(ctx context.Context, userID, revokedByIP, reason string) (int64, error) {
	query := `
		UPDATE identity.refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, reason_revoked = $4
		WHERE user_id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, userID, r.now(), nullString(revokedByIP), nullString(reason))
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	revoked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"revoked": revoked,
	}).Info("Revoked refresh tokens for user")

	return revoked, nil
}

// DeleteExpired removes tokens that expired before the cutoff
func (r *RefreshTokenPostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM identity.refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"before":  before,
		"deleted": deleted,
	}).Info("Expired refresh tokens cleaned up")

	return deleted, nil
}
