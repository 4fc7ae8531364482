package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/model"
	registrycache "github.com/chirino/social-service/internal/registry/cache"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.UserCache, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis cache: SOCIAL_SERVICE_REDIS_URL is required")
	}
	return LoadFromURLWithTTL(ctx, cfg.RedisURL, cfg.CacheTTL)
}

// LoadFromURLWithTTL creates a cache with an explicit default entry TTL.
// A ttl <= 0 selects the default of ten minutes.
func LoadFromURLWithTTL(ctx context.Context, redisURL string, ttl time.Duration) (registrycache.UserCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisUserCache{client: client, ttl: ttl}, nil
}

type redisUserCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func userKey(userID string) string {
	return "social-user:" + userID
}

func (c *redisUserCache) Available() bool {
	return true
}

func (c *redisUserCache) Get(ctx context.Context, userID string) (*model.User, error) {
	data, err := c.client.Get(ctx, userKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *redisUserCache) Set(ctx context.Context, user model.User, ttl time.Duration) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, userKey(user.ID), data, ttl).Err()
}

func (c *redisUserCache) Remove(ctx context.Context, userID string) error {
	return c.client.Del(ctx, userKey(userID)).Err()
}

var _ registrycache.UserCache = (*redisUserCache)(nil)
