package metrics

import (
	"context"
	"time"

	"github.com/chirino/social-service/internal/model"
	"github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
	"github.com/google/uuid"
)

// Wrap returns a SocialStore that records StoreLatency for every operation.
func Wrap(inner store.SocialStore) store.SocialStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.SocialStore
}

func observe(op string, start time.Time) {
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) CreateTweet(ctx context.Context, authorID string, req store.CreateTweetRequest) (*model.Tweet, error) {
	defer observe("create_tweet", time.Now())
	return m.inner.CreateTweet(ctx, authorID, req)
}

func (m *metricsStore) ListTweets(ctx context.Context, filter store.TweetFilter, opts store.PageOptions) (*store.Page[model.PopulatedTweet], error) {
	defer observe("list_tweets", time.Now())
	return m.inner.ListTweets(ctx, filter, opts)
}

func (m *metricsStore) GetTweet(ctx context.Context, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	defer observe("get_tweet", time.Now())
	return m.inner.GetTweet(ctx, tweetID)
}

func (m *metricsStore) UpdateTweet(ctx context.Context, userID string, tweetID uuid.UUID, tweetText string) (*model.Tweet, error) {
	defer observe("update_tweet", time.Now())
	return m.inner.UpdateTweet(ctx, userID, tweetID, tweetText)
}

func (m *metricsStore) DeleteTweet(ctx context.Context, userID string, tweetID uuid.UUID) (int64, error) {
	defer observe("delete_tweet", time.Now())
	return m.inner.DeleteTweet(ctx, userID, tweetID)
}

func (m *metricsStore) LikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	defer observe("like_tweet", time.Now())
	return m.inner.LikeTweet(ctx, userID, tweetID)
}

func (m *metricsStore) UnlikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	defer observe("unlike_tweet", time.Now())
	return m.inner.UnlikeTweet(ctx, userID, tweetID)
}

func (m *metricsStore) SendMessage(ctx context.Context, fromID string, req store.SendMessageRequest) (*model.Chat, error) {
	defer observe("send_message", time.Now())
	return m.inner.SendMessage(ctx, fromID, req)
}

func (m *metricsStore) GetConversation(ctx context.Context, userID string, otherUserID string, opts store.PageOptions) (*store.Page[model.Chat], error) {
	defer observe("get_conversation", time.Now())
	return m.inner.GetConversation(ctx, userID, otherUserID, opts)
}

func (m *metricsStore) UpsertUser(ctx context.Context, userID string, name string) (*model.User, error) {
	defer observe("upsert_user", time.Now())
	return m.inner.UpsertUser(ctx, userID, name)
}

func (m *metricsStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	defer observe("get_user", time.Now())
	return m.inner.GetUser(ctx, userID)
}

var _ store.SocialStore = (*metricsStore)(nil)
