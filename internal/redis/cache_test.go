package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/testutil"
)

func newTestRepository(t *testing.T) (*CacheRedisRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := testutil.NewTestConfig(config.CacheProviderNetworked)
	cfg.KeyPrefix = "identity"

	repo := NewCacheRepository(client, testutil.NewTestLogger(), cfg)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func TestKeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)

	require.NoError(t, repo.Set(ctx, "roles:id:1", []byte(`{"id":"1"}`), time.Minute))

	assert.True(t, mr.Exists("identity:roles:id:1"))
	assert.Equal(t, time.Minute, mr.TTL("identity:roles:id:1"))

	value, found, err := repo.Get(ctx, "roles:id:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":"1"}`, string(value))
}

func TestGetMissIsNotAnError(t *testing.T) {
	repo, _ := newTestRepository(t)

	value, found, err := repo.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestDeleteByPatternUsesGlob(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)

	for _, key := range []string{"roles:paged:1:20", "roles:paged:2:20", "archived:roles:paged:1:20", "roles:id:1"} {
		require.NoError(t, repo.Set(ctx, key, []byte(`1`), time.Minute))
	}
	require.NoError(t, mr.Set("other-service:roles:paged:1:20", "1"))

	deleted, err := repo.DeleteByPattern(ctx, "roles:paged:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	assert.True(t, mr.Exists("identity:archived:roles:paged:1:20"))
	assert.True(t, mr.Exists("identity:roles:id:1"))
	assert.True(t, mr.Exists("other-service:roles:paged:1:20"), "keys outside the prefix are never touched")
}

func TestTagSetsOutliveValues(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)

	require.NoError(t, repo.Set(ctx, "roles:id:A", []byte(`1`), 10*time.Minute))
	require.NoError(t, repo.AddToTags(ctx, "roles:id:A", []string{"roles"}, 10*time.Minute))

	members, err := mr.Members("identity:tag:roles")
	require.NoError(t, err)
	assert.Equal(t, []string{"identity:roles:id:A"}, members)
	assert.Equal(t, 10*time.Minute+TagGracePeriod, mr.TTL("identity:tag:roles"))

	// a shorter write does not shorten the set
	require.NoError(t, repo.Set(ctx, "roles:id:B", []byte(`1`), time.Minute))
	require.NoError(t, repo.AddToTags(ctx, "roles:id:B", []string{"roles"}, time.Minute))
	assert.Equal(t, 10*time.Minute+TagGracePeriod, mr.TTL("identity:tag:roles"))

	deleted, err := repo.DeleteByTag(ctx, "roles")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.False(t, mr.Exists("identity:tag:roles"))
}

func TestBatchOperations(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	require.NoError(t, repo.SetMany(ctx, map[string][]byte{
		"a": []byte(`1`),
		"b": []byte(`2`),
	}, time.Minute))

	values, keyErrors, err := repo.GetMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Empty(t, keyErrors)
	assert.Equal(t, map[string][]byte{"a": []byte(`1`), "b": []byte(`2`)}, values)
}

func TestTransportFailuresOpenTheBreaker(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)

	mr.Close()

	for i := 0; i < 3; i++ {
		_, _, err := repo.Get(ctx, "roles:id:1")
		assert.Error(t, err)
	}
	assert.Equal(t, "open", repo.BreakerState())

	// once open, calls fail without touching the network
	_, err := repo.Exists(ctx, "roles:id:1")
	assert.Error(t, err)
	assert.Error(t, repo.Ping(ctx))
}

func TestMissesDoNotTripTheBreaker(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	for i := 0; i < 10; i++ {
		_, found, err := repo.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, "closed", repo.BreakerState())
}
