package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/chirino/social-service/internal/model"
	cacheredis "github.com/chirino/social-service/internal/plugin/cache/redis"
	"github.com/chirino/social-service/internal/testutil/testredis"
	"github.com/stretchr/testify/require"
)

func TestUserCacheRoundTrip(t *testing.T) {
	redisURL := testredis.StartRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := cacheredis.LoadFromURLWithTTL(ctx, redisURL, time.Minute)
	require.NoError(t, err)
	require.True(t, c.Available())

	got, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	require.Nil(t, got)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, c.Set(ctx, model.User{ID: "alice", Name: "Alice", CreatedAt: created, UpdatedAt: created}, 0))

	got, err = c.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)
	require.True(t, created.Equal(got.CreatedAt))

	require.NoError(t, c.Remove(ctx, "alice"))
	got, err = c.Get(ctx, "alice")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUserCacheExpires(t *testing.T) {
	redisURL := testredis.StartRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := cacheredis.LoadFromURLWithTTL(ctx, redisURL, time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, model.User{ID: "bob", Name: "Bob"}, 100*time.Millisecond))
	require.Eventually(t, func() bool {
		got, err := c.Get(ctx, "bob")
		return err == nil && got == nil
	}, 5*time.Second, 50*time.Millisecond)
}
