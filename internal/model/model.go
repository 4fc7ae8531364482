package model

import (
	"time"

	"github.com/google/uuid"
)

// TweetType is the kind of a tweet.
type TweetType string

const (
	TweetTypeTweet    TweetType = "tweet"
	TweetTypeRetweet  TweetType = "retweet"
	TweetTypeThreaded TweetType = "threaded"
)

// Valid reports whether t is one of the known tweet types.
func (t TweetType) Valid() bool {
	switch t {
	case TweetTypeTweet, TweetTypeRetweet, TweetTypeThreaded:
		return true
	default:
		return false
	}
}

// Tweet is a stored tweet with its references left unresolved.
type Tweet struct {
	ID             uuid.UUID  `json:"id"                       gorm:"primaryKey;type:text"`
	User           string     `json:"user"                     gorm:"column:user_id;not null"`
	TweetText      string     `json:"tweetText"                gorm:"column:tweet_text;not null;default:''"`
	Type           TweetType  `json:"type"                     gorm:"not null"`
	Likes          []string   `json:"likes"                    gorm:"-"`
	ThreadedTweet  *uuid.UUID `json:"threadedTweet,omitempty"  gorm:"column:threaded_tweet_id;type:text"`
	RetweetedTweet *uuid.UUID `json:"retweetedTweet,omitempty" gorm:"column:retweeted_tweet_id;type:text"`
	CreatedAt      time.Time  `json:"createdAt"                gorm:"not null"`
	UpdatedAt      time.Time  `json:"updatedAt"                gorm:"not null"`
}

func (Tweet) TableName() string { return "tweets" }

// TweetLike records that a user likes a tweet. The (tweet, user) pair is unique.
type TweetLike struct {
	TweetID   uuid.UUID `gorm:"primaryKey;column:tweet_id;type:text"`
	UserID    string    `gorm:"primaryKey;column:user_id"`
	CreatedAt time.Time `gorm:"not null"`
}

func (TweetLike) TableName() string { return "tweet_likes" }

// UserRef is the representation a user reference is populated into.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// PopulatedTweet is a tweet with its author, parents and likers resolved.
// ThreadedTweet and RetweetedTweet are nil when unset or when the parent no longer exists.
type PopulatedTweet struct {
	ID             uuid.UUID `json:"id"`
	User           UserRef   `json:"user"`
	TweetText      string    `json:"tweetText"`
	Type           TweetType `json:"type"`
	Likes          []UserRef `json:"likes"`
	ThreadedTweet  *Tweet    `json:"threadedTweet"`
	RetweetedTweet *Tweet    `json:"retweetedTweet"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Chat is a direct message between two users. Chats are never modified after creation.
type Chat struct {
	ID        uuid.UUID `json:"id"        gorm:"primaryKey;type:text"`
	From      string    `json:"from"      gorm:"column:from_user_id;not null"`
	To        string    `json:"to"        gorm:"column:to_user_id;not null"`
	Message   string    `json:"message"   gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

func (Chat) TableName() string { return "chats" }

// User is a profile record keyed by the authenticated subject.
type User struct {
	ID        string    `json:"id"        gorm:"primaryKey"`
	Name      string    `json:"name"      gorm:"not null;default:''"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

func (User) TableName() string { return "users" }

// Ref returns the populated representation of u.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name}
}
