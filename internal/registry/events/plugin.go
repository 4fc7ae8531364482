package events

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/social-service/internal/model"
)

const (
	TweetCreated = "tweet.created"
	TweetUpdated = "tweet.updated"
	TweetDeleted = "tweet.deleted"
	TweetLiked   = "tweet.liked"
	TweetUnliked = "tweet.unliked"
	ChatSent     = "chat.sent"
)

// Event describes a completed mutation.
type Event struct {
	Type       string       `json:"type"`
	OccurredAt time.Time    `json:"occurredAt"`
	Actor      string       `json:"actor"`
	TweetID    string       `json:"tweetId,omitempty"`
	Tweet      *model.Tweet `json:"tweet,omitempty"`
	Chat       *model.Chat  `json:"chat,omitempty"`
}

// Publisher delivers events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Loader creates a Publisher from config.
type Loader func(ctx context.Context) (Publisher, error)

// Plugin represents an events plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds an events plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered events plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named events plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown events backend %q; valid: %v", name, Names())
}
