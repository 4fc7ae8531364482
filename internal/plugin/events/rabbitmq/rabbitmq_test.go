package rabbitmq_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	eventsrabbitmq "github.com/chirino/social-service/internal/plugin/events/rabbitmq"
	registryevents "github.com/chirino/social-service/internal/registry/events"
	"github.com/chirino/social-service/internal/testutil/testrabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestPublishRoutesByEventType(t *testing.T) {
	url := testrabbitmq.StartRabbitMQ(t)
	const exchange = "social.events.test"

	pub, err := eventsrabbitmq.Dial(url, exchange)
	require.NoError(t, err)
	defer pub.Close()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "chat.*", exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Not bound: must not arrive on the chat queue.
	require.NoError(t, pub.Publish(ctx, registryevents.Event{Type: registryevents.TweetLiked, Actor: "bob"}))
	require.NoError(t, pub.Publish(ctx, registryevents.Event{Type: registryevents.ChatSent, Actor: "alice"}))

	select {
	case d := <-deliveries:
		require.Equal(t, registryevents.ChatSent, d.RoutingKey)
		require.Equal(t, "application/json", d.ContentType)
		var got registryevents.Event
		require.NoError(t, json.Unmarshal(d.Body, &got))
		require.Equal(t, "alice", got.Actor)
	case <-ctx.Done():
		t.Fatal("timed out waiting for chat.sent delivery")
	}
}
