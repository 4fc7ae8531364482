package store

import (
	"strings"

	"github.com/chirino/social-service/internal/model"
	"github.com/google/uuid"
)

// PopulateTweets resolves the author, likers and parent references of tweets.
// Users without a profile record populate as a stub carrying only their id, and
// parents missing from the parents map populate as nil.
func PopulateTweets(tweets []model.Tweet, parents map[uuid.UUID]model.Tweet, users map[string]model.User) []model.PopulatedTweet {
	ref := func(id string) model.UserRef {
		if u, ok := users[id]; ok {
			return u.Ref()
		}
		return model.UserRef{ID: id}
	}
	parent := func(id *uuid.UUID) *model.Tweet {
		if id == nil {
			return nil
		}
		p, ok := parents[*id]
		if !ok {
			return nil
		}
		if p.Likes == nil {
			p.Likes = []string{}
		}
		return &p
	}

	out := make([]model.PopulatedTweet, 0, len(tweets))
	for _, t := range tweets {
		likes := make([]model.UserRef, 0, len(t.Likes))
		for _, id := range t.Likes {
			likes = append(likes, ref(id))
		}
		out = append(out, model.PopulatedTweet{
			ID:             t.ID,
			User:           ref(t.User),
			TweetText:      t.TweetText,
			Type:           t.Type,
			Likes:          likes,
			ThreadedTweet:  parent(t.ThreadedTweet),
			RetweetedTweet: parent(t.RetweetedTweet),
			CreatedAt:      t.CreatedAt,
			UpdatedAt:      t.UpdatedAt,
		})
	}
	return out
}

// ParentIDs returns the distinct parent references of tweets.
func ParentIDs(tweets []model.Tweet) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, t := range tweets {
		for _, p := range []*uuid.UUID{t.ThreadedTweet, t.RetweetedTweet} {
			if p != nil && !seen[*p] {
				seen[*p] = true
				ids = append(ids, *p)
			}
		}
	}
	return ids
}

// UserIDs returns the distinct authors and likers of tweets.
func UserIDs(tweets []model.Tweet) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, t := range tweets {
		add(t.User)
		for _, id := range t.Likes {
			add(id)
		}
	}
	return ids
}

// ValidateTweetText checks the text of a tweet update.
func ValidateTweetText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "tweetText", Message: "is required"}
	}
	return nil
}

// ValidateUserName checks the name of a profile update.
func ValidateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return nil
}
