package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Requires a running server, e.g. HEALTHHARMONY_TEST_REDIS_ADDR=localhost:6379
func newTestRepository(t *testing.T) *CacheRepository {
	addr := os.Getenv("HEALTHHARMONY_TEST_REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("HEALTHHARMONY_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())

	repo := NewCacheRepository(client, "hh-test:"+uuid.NewString()+":", zaptest.NewLogger(t))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestCacheRepository_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "flow:a")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "flow:a", []byte(`{"ok":true}`), time.Minute))

	got, err := repo.Get(ctx, "flow:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	exists, err := repo.Exists(ctx, "flow:a")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Delete(ctx, "flow:a"))
	exists, err = repo.Exists(ctx, "flow:a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheRepository_Expiry(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "short", []byte("x"), 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)

	_, err := repo.Get(ctx, "short")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)
}
