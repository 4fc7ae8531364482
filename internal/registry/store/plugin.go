package store

import (
	"context"
	"fmt"

	"github.com/chirino/social-service/internal/model"
	"github.com/google/uuid"
)

// TweetFilter narrows ListTweets. Nil fields match everything.
type TweetFilter struct {
	User *string
	Type *model.TweetType
}

// SocialStore is the persistence contract shared by all datastore plugins.
type SocialStore interface {
	// Tweets
	CreateTweet(ctx context.Context, authorID string, req CreateTweetRequest) (*model.Tweet, error)
	ListTweets(ctx context.Context, filter TweetFilter, opts PageOptions) (*Page[model.PopulatedTweet], error)
	// GetTweet returns (nil, nil) when the tweet does not exist.
	GetTweet(ctx context.Context, tweetID uuid.UUID) (*model.PopulatedTweet, error)
	// UpdateTweet changes the text of a tweet owned by userID. A tweet that is
	// missing or owned by someone else yields a NotFoundError.
	UpdateTweet(ctx context.Context, userID string, tweetID uuid.UUID, tweetText string) (*model.Tweet, error)
	// DeleteTweet removes a tweet owned by userID and returns the number of removed tweets.
	DeleteTweet(ctx context.Context, userID string, tweetID uuid.UUID) (int64, error)
	LikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error)
	UnlikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error)

	// Chats
	SendMessage(ctx context.Context, fromID string, req SendMessageRequest) (*model.Chat, error)
	GetConversation(ctx context.Context, userID string, otherUserID string, opts PageOptions) (*Page[model.Chat], error)

	// Users
	UpsertUser(ctx context.Context, userID string, name string) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// Loader creates a SocialStore from config.
type Loader func(ctx context.Context) (SocialStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
