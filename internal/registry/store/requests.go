package store

import (
	"strings"

	"github.com/chirino/social-service/internal/model"
	"github.com/google/uuid"
)

// CreateTweetRequest is the input for creating a tweet.
type CreateTweetRequest struct {
	TweetText      string
	Type           model.TweetType
	ThreadedTweet  *uuid.UUID
	RetweetedTweet *uuid.UUID
}

// Validate checks the type specific rules: text is required unless the tweet
// is a retweet, and each type carries exactly the parent reference it needs.
func (r CreateTweetRequest) Validate() error {
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be one of tweet, retweet, threaded"}
	}
	if r.Type != model.TweetTypeRetweet && strings.TrimSpace(r.TweetText) == "" {
		return &ValidationError{Field: "tweetText", Message: "is required"}
	}
	switch r.Type {
	case model.TweetTypeThreaded:
		if r.ThreadedTweet == nil {
			return &ValidationError{Field: "threadedTweet", Message: "is required for threaded tweets"}
		}
		if r.RetweetedTweet != nil {
			return &ValidationError{Field: "retweetedTweet", Message: "is only allowed on retweets"}
		}
	case model.TweetTypeRetweet:
		if r.RetweetedTweet == nil {
			return &ValidationError{Field: "retweetedTweet", Message: "is required for retweets"}
		}
		if r.ThreadedTweet != nil {
			return &ValidationError{Field: "threadedTweet", Message: "is only allowed on threaded tweets"}
		}
	default:
		if r.ThreadedTweet != nil {
			return &ValidationError{Field: "threadedTweet", Message: "is only allowed on threaded tweets"}
		}
		if r.RetweetedTweet != nil {
			return &ValidationError{Field: "retweetedTweet", Message: "is only allowed on retweets"}
		}
	}
	return nil
}

// Parent returns the referenced parent tweet, if any.
func (r CreateTweetRequest) Parent() *uuid.UUID {
	if r.ThreadedTweet != nil {
		return r.ThreadedTweet
	}
	return r.RetweetedTweet
}

// SendMessageRequest is the input for sending a chat message.
type SendMessageRequest struct {
	To      string
	Message string
}

// Validate checks that the recipient and message are present.
func (r SendMessageRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return &ValidationError{Field: "to", Message: "is required"}
	}
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Message: "is required"}
	}
	return nil
}
