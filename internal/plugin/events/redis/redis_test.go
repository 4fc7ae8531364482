package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	eventsredis "github.com/chirino/social-service/internal/plugin/events/redis"
	registryevents "github.com/chirino/social-service/internal/registry/events"
	"github.com/chirino/social-service/internal/testutil/testredis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	require.Equal(t, "social.chat.sent", eventsredis.Channel("social", registryevents.ChatSent))
	require.Equal(t, "chat.sent", eventsredis.Channel("", registryevents.ChatSent))
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	redisURL := testredis.StartRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts, err := goredis.ParseURL(redisURL)
	require.NoError(t, err)
	subscriber := goredis.NewClient(opts)
	defer subscriber.Close()
	sub := subscriber.Subscribe(ctx, "social.tweet.created")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	pub, err := eventsredis.LoadFromURL(ctx, redisURL, "social")
	require.NoError(t, err)
	defer pub.Close()

	err = pub.Publish(ctx, registryevents.Event{
		Type:       registryevents.TweetCreated,
		OccurredAt: time.Now().UTC(),
		Actor:      "alice",
		TweetID:    "0f4a1e9e-5ad0-4d1c-9b55-6f0d3a3c7c11",
	})
	require.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got registryevents.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	require.Equal(t, registryevents.TweetCreated, got.Type)
	require.Equal(t, "alice", got.Actor)
	require.Equal(t, "0f4a1e9e-5ad0-4d1c-9b55-6f0d3a3c7c11", got.TweetID)
}
