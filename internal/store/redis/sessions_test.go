package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MessagingWebserver/internal/domain"
)

func TestSessionsStore_Lifecycle(t *testing.T) {
	addr := os.Getenv("APP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("APP_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewSessionsStore(client)
	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	id, err := store.CreateSession(ctx, "user-1", expires, "127.0.0.1", "test")
	require.NoError(t, err)

	sess, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.True(t, sess.ExpiresAt.Equal(expires))

	ttl, err := client.TTL(ctx, sessionKeyPrefix+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)

	require.NoError(t, store.RevokeSession(ctx, id, time.Now()))
	_, err = store.GetSession(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
