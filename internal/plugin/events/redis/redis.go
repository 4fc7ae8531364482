package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chirino/social-service/internal/config"
	registryevents "github.com/chirino/social-service/internal/registry/events"
	goredis "github.com/redis/go-redis/v9"
)

func init() {
	registryevents.Register(registryevents.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registryevents.Publisher, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis events: SOCIAL_SERVICE_REDIS_URL is required")
	}
	return LoadFromURL(ctx, cfg.RedisURL, cfg.RedisChannelPrefix)
}

// LoadFromURL creates a Publisher that PUBLISHes each event on "<prefix>.<event type>".
func LoadFromURL(ctx context.Context, redisURL string, prefix string) (registryevents.Publisher, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis events: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis events: ping failed: %w", err)
	}
	return &redisPublisher{client: client, prefix: prefix}, nil
}

type redisPublisher struct {
	client *goredis.Client
	prefix string
}

// Channel returns the channel an event type is published on.
func Channel(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

func (p *redisPublisher) Publish(ctx context.Context, event registryevents.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis events: marshal: %w", err)
	}
	return p.client.Publish(ctx, Channel(p.prefix, event.Type), data).Err()
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

var _ registryevents.Publisher = (*redisPublisher)(nil)
