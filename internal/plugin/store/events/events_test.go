package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chirino/social-service/internal/model"
	"github.com/chirino/social-service/internal/plugin/store/events"
	registryevents "github.com/chirino/social-service/internal/registry/events"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []registryevents.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event registryevents.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newStore(t *testing.T) (registrystore.SocialStore, context.Context) {
	t.Helper()
	return testsqlite.OpenStore(t)
}

func TestWrapPublishesMutations(t *testing.T) {
	inner, ctx := newStore(t)
	pub := &recordingPublisher{}
	store := events.Wrap(inner, pub)

	tweet, err := store.CreateTweet(ctx, "alice", registrystore.CreateTweetRequest{TweetText: "hi", Type: model.TweetTypeTweet})
	require.NoError(t, err)
	_, err = store.UpdateTweet(ctx, "alice", tweet.ID, "hello")
	require.NoError(t, err)
	_, err = store.LikeTweet(ctx, "bob", tweet.ID)
	require.NoError(t, err)
	_, err = store.UnlikeTweet(ctx, "bob", tweet.ID)
	require.NoError(t, err)
	_, err = store.SendMessage(ctx, "alice", registrystore.SendMessageRequest{To: "bob", Message: "yo"})
	require.NoError(t, err)
	_, err = store.ListTweets(ctx, registrystore.TweetFilter{}, registrystore.PageOptions{})
	require.NoError(t, err)
	n, err := store.DeleteTweet(ctx, "alice", tweet.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.Equal(t, []string{
		registryevents.TweetCreated,
		registryevents.TweetUpdated,
		registryevents.TweetLiked,
		registryevents.TweetUnliked,
		registryevents.ChatSent,
		registryevents.TweetDeleted,
	}, pub.types())

	first := pub.events[0]
	require.Equal(t, "alice", first.Actor)
	require.Equal(t, tweet.ID.String(), first.TweetID)
	require.False(t, first.OccurredAt.IsZero())
	require.NotNil(t, pub.events[4].Chat)
}

func TestWrapSkipsFailedMutations(t *testing.T) {
	inner, ctx := newStore(t)
	pub := &recordingPublisher{}
	store := events.Wrap(inner, pub)

	_, err := store.CreateTweet(ctx, "alice", registrystore.CreateTweetRequest{Type: model.TweetTypeTweet})
	require.Error(t, err)
	_, err = store.UpdateTweet(ctx, "alice", uuid.New(), "nope")
	require.Error(t, err)
	n, err := store.DeleteTweet(ctx, "alice", uuid.New())
	require.NoError(t, err)
	require.Zero(t, n)

	require.Empty(t, pub.types())
}

func TestWrapIgnoresPublishErrors(t *testing.T) {
	inner, ctx := newStore(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	store := events.Wrap(inner, pub)

	tweet, err := store.CreateTweet(ctx, "alice", registrystore.CreateTweetRequest{TweetText: "hi", Type: model.TweetTypeTweet})
	require.NoError(t, err)
	require.NotNil(t, tweet)
	require.Equal(t, []string{registryevents.TweetCreated}, pub.types())
}
