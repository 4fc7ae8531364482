package events

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/social-service/internal/model"
	registryevents "github.com/chirino/social-service/internal/registry/events"
	"github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
	"github.com/google/uuid"
)

// PublishTimeout bounds how long a mutation waits on the broker.
const PublishTimeout = 5 * time.Second

// Wrap returns a SocialStore that publishes an event after every successful
// mutation. Publishing failures are logged and counted, never returned.
func Wrap(inner store.SocialStore, publisher registryevents.Publisher) store.SocialStore {
	return &eventsStore{inner: inner, publisher: publisher}
}

type eventsStore struct {
	inner     store.SocialStore
	publisher registryevents.Publisher
}

func (e *eventsStore) publish(ctx context.Context, event registryevents.Event) {
	event.OccurredAt = time.Now().UTC()
	// The request may be cancelled as soon as the response is written.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()

	outcome := "ok"
	if err := e.publisher.Publish(ctx, event); err != nil {
		outcome = "error"
		log.Warn("Failed to publish event", "type", event.Type, "actor", event.Actor, "err", err)
	}
	if security.EventsPublishedTotal != nil {
		security.EventsPublishedTotal.WithLabelValues(event.Type, outcome).Inc()
	}
}

func (e *eventsStore) CreateTweet(ctx context.Context, authorID string, req store.CreateTweetRequest) (*model.Tweet, error) {
	tweet, err := e.inner.CreateTweet(ctx, authorID, req)
	if err == nil {
		e.publish(ctx, registryevents.Event{Type: registryevents.TweetCreated, Actor: authorID, TweetID: tweet.ID.String(), Tweet: tweet})
	}
	return tweet, err
}

func (e *eventsStore) ListTweets(ctx context.Context, filter store.TweetFilter, opts store.PageOptions) (*store.Page[model.PopulatedTweet], error) {
	return e.inner.ListTweets(ctx, filter, opts)
}

func (e *eventsStore) GetTweet(ctx context.Context, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	return e.inner.GetTweet(ctx, tweetID)
}

func (e *eventsStore) UpdateTweet(ctx context.Context, userID string, tweetID uuid.UUID, tweetText string) (*model.Tweet, error) {
	tweet, err := e.inner.UpdateTweet(ctx, userID, tweetID, tweetText)
	if err == nil {
		e.publish(ctx, registryevents.Event{Type: registryevents.TweetUpdated, Actor: userID, TweetID: tweetID.String(), Tweet: tweet})
	}
	return tweet, err
}

func (e *eventsStore) DeleteTweet(ctx context.Context, userID string, tweetID uuid.UUID) (int64, error) {
	n, err := e.inner.DeleteTweet(ctx, userID, tweetID)
	if err == nil && n > 0 {
		e.publish(ctx, registryevents.Event{Type: registryevents.TweetDeleted, Actor: userID, TweetID: tweetID.String()})
	}
	return n, err
}

func (e *eventsStore) LikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	tweet, err := e.inner.LikeTweet(ctx, userID, tweetID)
	if err == nil {
		e.publish(ctx, registryevents.Event{Type: registryevents.TweetLiked, Actor: userID, TweetID: tweetID.String()})
	}
	return tweet, err
}

func (e *eventsStore) UnlikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	tweet, err := e.inner.UnlikeTweet(ctx, userID, tweetID)
	if err == nil {
		e.publish(ctx, registryevents.Event{Type: registryevents.TweetUnliked, Actor: userID, TweetID: tweetID.String()})
	}
	return tweet, err
}

func (e *eventsStore) SendMessage(ctx context.Context, fromID string, req store.SendMessageRequest) (*model.Chat, error) {
	chat, err := e.inner.SendMessage(ctx, fromID, req)
	if err == nil {
		e.publish(ctx, registryevents.Event{Type: registryevents.ChatSent, Actor: fromID, Chat: chat})
	}
	return chat, err
}

func (e *eventsStore) GetConversation(ctx context.Context, userID string, otherUserID string, opts store.PageOptions) (*store.Page[model.Chat], error) {
	return e.inner.GetConversation(ctx, userID, otherUserID, opts)
}

func (e *eventsStore) UpsertUser(ctx context.Context, userID string, name string) (*model.User, error) {
	return e.inner.UpsertUser(ctx, userID, name)
}

func (e *eventsStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return e.inner.GetUser(ctx, userID)
}

var _ store.SocialStore = (*eventsStore)(nil)
