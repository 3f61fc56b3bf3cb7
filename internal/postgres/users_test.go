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
)

func TestUserRepository_GetActivePaged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db, testutil.NewTestLogger(), testutil.NewTestConfig(config.CacheProviderLocal))
	created := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	lastLogin := created.Add(48 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM identity.users WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "email", "is_active", "created_at", "last_login_at"}).
			AddRow("u-1", "alice", "alice@example.com", true, created, lastLogin).
			AddRow("u-2", "bob", "bob@example.com", true, created, nil))

	page, err := repo.GetActivePaged(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalCount)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.Items[0].LastLoginAt)
	assert.True(t, page.Items[0].LastLoginAt.Equal(lastLogin))
	assert.Nil(t, page.Items[1].LastLoginAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
