package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/testutil"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

var tokenRowColumns = []string{"id", "user_id", "token", "expires_at", "created_at", "created_by_ip",
	"revoked_at", "revoked_by_ip", "reason_revoked", "replaced_by_token"}

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTokenRepo(t *testing.T) (*RefreshTokenPostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRefreshTokenRepository(db, testutil.NewTestLogger(), testutil.NewTestConfig(config.CacheProviderLocal))
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func TestRefreshTokenRepository_Create(t *testing.T) {
	repo, mock := newTokenRepo(t)
	token := &models.RefreshToken{UserID: "u-1", Token: "secret", ExpiresAt: fixedNow.Add(time.Hour)}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identity.refresh_tokens")).
		WithArgs(sqlmock.AnyArg(), "u-1", "secret", token.ExpiresAt, fixedNow, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), token))
	assert.NotEmpty(t, token.ID)
	assert.Equal(t, fixedNow, token.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByTokenScansRevocation(t *testing.T) {
	repo, mock := newTokenRepo(t)
	revokedAt := fixedNow.Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM identity.refresh_tokens WHERE token = $1")).
		WithArgs("secret").
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).
			AddRow("t-1", "u-1", "secret", fixedNow.Add(time.Hour), fixedNow.Add(-time.Hour), "10.0.0.1",
				revokedAt, "10.0.0.2", "logout", nil))

	token, err := repo.GetByToken(context.Background(), "secret")
	require.NoError(t, err)
	require.NotNil(t, token.RevokedAt)
	assert.True(t, token.RevokedAt.Equal(revokedAt))
	assert.Equal(t, "logout", token.ReasonRevoked)
	assert.Empty(t, token.ReplacedByToken)
	assert.False(t, token.IsActive(fixedNow))
}

func TestRefreshTokenRepository_GetByTokenNotFound(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token = $1")).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(tokenRowColumns))

	_, err := repo.GetByToken(context.Background(), "unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NotContains(t, err.Error(), "unknown", "token values never appear in errors")
}

func TestRefreshTokenRepository_ActiveQueriesUseCurrentTime(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2")).
		WithArgs("u-1", fixedNow).
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).
			AddRow("t-1", "u-1", "a", fixedNow.Add(time.Hour), fixedNow, nil, nil, nil, nil, nil).
			AddRow("t-2", "u-1", "b", fixedNow.Add(time.Hour), fixedNow, nil, nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("u-1", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	tokens, err := repo.GetActiveByUserID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	count, err := repo.CountActiveByUserID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetPaged(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM identity.refresh_tokens WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2 OFFSET $3")).
		WithArgs("u-1", models.DefaultPageSize, 40).
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).
			AddRow("t-41", "u-1", "x", fixedNow, fixedNow, nil, nil, nil, nil, nil))

	page, err := repo.GetPaged(context.Background(), models.TokenQuery{UserID: "u-1", Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages())
	assert.Len(t, page.Items, 1)
}

func TestRefreshTokenRepository_Revoke(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE token = $1 AND revoked_at IS NULL")).
		WithArgs("secret", fixedNow, "10.0.0.2", "logout").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE token = $1 AND revoked_at IS NULL")).
		WithArgs("secret", fixedNow, "10.0.0.2", "logout").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Revoke(context.Background(), "secret", "10.0.0.2", "logout"))
	assert.ErrorIs(t, repo.Revoke(context.Background(), "secret", "10.0.0.2", "logout"), models.ErrNotFound)
}

func TestRefreshTokenRepository_BulkOperations(t *testing.T) {
	repo, mock := newTokenRepo(t)
	cutoff := fixedNow.Add(-24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $1 AND revoked_at IS NULL")).
		WithArgs("u-1", fixedNow, nil, "password reset").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM identity.refresh_tokens WHERE expires_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	revoked, err := repo.RevokeAllForUser(context.Background(), "u-1", "", "password reset")
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)

	deleted, err := repo.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(17), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
