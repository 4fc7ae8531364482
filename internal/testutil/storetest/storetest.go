// Package storetest holds behavior checks shared by every SocialStore backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chirino/social-service/internal/model"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Run exercises store against the SocialStore contract. Subtests share the
// store and isolate themselves with fresh user ids.
func Run(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	t.Run("CreateAndGetTweet", func(t *testing.T) { testCreateAndGetTweet(t, ctx, store) })
	t.Run("CreateTweetValidation", func(t *testing.T) { testCreateTweetValidation(t, ctx, store) })
	t.Run("ListTweetsPaging", func(t *testing.T) { testListTweetsPaging(t, ctx, store) })
	t.Run("ListTweetsSortAndFilter", func(t *testing.T) { testListTweetsSortAndFilter(t, ctx, store) })
	t.Run("UpdateTweetOwnership", func(t *testing.T) { testUpdateTweetOwnership(t, ctx, store) })
	t.Run("DeleteTweetOwnership", func(t *testing.T) { testDeleteTweetOwnership(t, ctx, store) })
	t.Run("LikeAndUnlike", func(t *testing.T) { testLikeAndUnlike(t, ctx, store) })
	t.Run("ConcurrentLikes", func(t *testing.T) { testConcurrentLikes(t, ctx, store) })
	t.Run("Population", func(t *testing.T) { testPopulation(t, ctx, store) })
	t.Run("Conversation", func(t *testing.T) { testConversation(t, ctx, store) })
	t.Run("Users", func(t *testing.T) { testUsers(t, ctx, store) })
}

func newUser() string {
	return "user-" + uuid.NewString()
}

func isNotFound(err error) bool {
	var nf *registrystore.NotFoundError
	return errors.As(err, &nf)
}

func validationField(t *testing.T, err error) string {
	t.Helper()
	var verr *registrystore.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Field
}

func tweet(t *testing.T, ctx context.Context, store registrystore.SocialStore, author string, text string) *model.Tweet {
	t.Helper()
	created, err := store.CreateTweet(ctx, author, registrystore.CreateTweetRequest{TweetText: text, Type: model.TweetTypeTweet})
	require.NoError(t, err)
	return created
}

func testCreateAndGetTweet(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice := newUser()
	created := tweet(t, ctx, store, alice, "hello")
	require.NotEqual(t, uuid.Nil, created.ID)
	require.Equal(t, alice, created.User)
	require.Equal(t, model.TweetTypeTweet, created.Type)
	require.NotNil(t, created.Likes)
	require.Empty(t, created.Likes)
	require.False(t, created.CreatedAt.IsZero())

	got, err := store.GetTweet(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "hello", got.TweetText)
	require.Equal(t, alice, got.User.ID)
	require.True(t, created.CreatedAt.Equal(got.CreatedAt), "created %v read %v", created.CreatedAt, got.CreatedAt)

	missing, err := store.GetTweet(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func testCreateTweetValidation(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice := newUser()
	_, err := store.CreateTweet(ctx, alice, registrystore.CreateTweetRequest{Type: model.TweetTypeTweet})
	require.Equal(t, "tweetText", validationField(t, err))

	_, err = store.CreateTweet(ctx, alice, registrystore.CreateTweetRequest{TweetText: "re", Type: model.TweetTypeThreaded})
	require.Equal(t, "threadedTweet", validationField(t, err))

	// References are not existence checked unless strict references are enabled.
	dangling := uuid.New()
	rt, err := store.CreateTweet(ctx, alice, registrystore.CreateTweetRequest{Type: model.TweetTypeRetweet, RetweetedTweet: &dangling})
	require.NoError(t, err)
	require.Equal(t, dangling, *rt.RetweetedTweet)
	require.Empty(t, rt.TweetText)
}

func testListTweetsPaging(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice := newUser()
	for _, text := range []string{"one", "two", "three"} {
		tweet(t, ctx, store, alice, text)
		time.Sleep(2 * time.Millisecond)
	}

	filter := registrystore.TweetFilter{User: &alice}
	page, err := store.ListTweets(ctx, filter, registrystore.PageOptions{Limit: 2, Page: 1})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.TotalResults)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, 2, page.Limit)
	require.Equal(t, 1, page.Page)
	require.Len(t, page.Results, 2)
	require.Equal(t, "one", page.Results[0].TweetText)
	require.Equal(t, "two", page.Results[1].TweetText)

	page, err = store.ListTweets(ctx, filter, registrystore.PageOptions{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	require.Equal(t, "three", page.Results[0].TweetText)

	page, err = store.ListTweets(ctx, filter, registrystore.PageOptions{Limit: 2, Page: 9})
	require.NoError(t, err)
	require.NotNil(t, page.Results)
	require.Empty(t, page.Results)
	require.Equal(t, int64(3), page.TotalResults)

	page, err = store.ListTweets(ctx, filter, registrystore.PageOptions{})
	require.NoError(t, err)
	require.Equal(t, registrystore.DefaultLimit, page.Limit)
	require.Equal(t, registrystore.DefaultPage, page.Page)
	require.Equal(t, 1, page.TotalPages)
}

func testListTweetsSortAndFilter(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice := newUser()
	first := tweet(t, ctx, store, alice, "first")
	time.Sleep(2 * time.Millisecond)
	tweet(t, ctx, store, alice, "second")
	time.Sleep(2 * time.Millisecond)
	_, err := store.CreateTweet(ctx, alice, registrystore.CreateTweetRequest{
		TweetText: "reply", Type: model.TweetTypeThreaded, ThreadedTweet: &first.ID,
	})
	require.NoError(t, err)

	filter := registrystore.TweetFilter{User: &alice}
	page, err := store.ListTweets(ctx, filter, registrystore.PageOptions{SortBy: "createdAt:desc"})
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	require.Equal(t, "reply", page.Results[0].TweetText)
	require.Equal(t, "first", page.Results[2].TweetText)

	threaded := model.TweetTypeThreaded
	page, err = store.ListTweets(ctx, registrystore.TweetFilter{User: &alice, Type: &threaded}, registrystore.PageOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.TotalResults)
	require.Equal(t, "reply", page.Results[0].TweetText)

	_, err = store.ListTweets(ctx, filter, registrystore.PageOptions{SortBy: "secret:asc"})
	require.Equal(t, "sortBy", validationField(t, err))
}

func testUpdateTweetOwnership(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice, bob := newUser(), newUser()
	created := tweet(t, ctx, store, alice, "draft")
	time.Sleep(2 * time.Millisecond)

	_, err := store.UpdateTweet(ctx, bob, created.ID, "hijacked")
	require.True(t, isNotFound(err), "expected not found, got %v", err)

	_, err = store.UpdateTweet(ctx, alice, uuid.New(), "nothing")
	require.True(t, isNotFound(err), "expected not found, got %v", err)

	_, err = store.UpdateTweet(ctx, alice, created.ID, "  ")
	require.Equal(t, "tweetText", validationField(t, err))

	updated, err := store.UpdateTweet(ctx, alice, created.ID, "final")
	require.NoError(t, err)
	require.Equal(t, "final", updated.TweetText)
	require.Equal(t, created.Type, updated.Type)
	require.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	require.True(t, updated.CreatedAt.Equal(created.CreatedAt))

	got, err := store.GetTweet(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "final", got.TweetText)
}

func testDeleteTweetOwnership(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice, bob := newUser(), newUser()
	created := tweet(t, ctx, store, alice, "doomed")

	n, err := store.DeleteTweet(ctx, bob, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	n, err = store.DeleteTweet(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := store.GetTweet(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	n, err = store.DeleteTweet(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func testLikeAndUnlike(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice, bob := newUser(), newUser()
	created := tweet(t, ctx, store, alice, "likeable")

	liked, err := store.LikeTweet(ctx, bob, created.ID)
	require.NoError(t, err)
	require.Equal(t, []model.UserRef{{ID: bob}}, liked.Likes)

	liked, err = store.LikeTweet(ctx, bob, created.ID)
	require.NoError(t, err)
	require.Len(t, liked.Likes, 1)

	liked, err = store.LikeTweet(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Len(t, liked.Likes, 2)

	unliked, err := store.UnlikeTweet(ctx, bob, created.ID)
	require.NoError(t, err)
	require.Equal(t, []model.UserRef{{ID: alice}}, unliked.Likes)

	unliked, err = store.UnlikeTweet(ctx, bob, created.ID)
	require.NoError(t, err)
	require.Len(t, unliked.Likes, 1)

	_, err = store.LikeTweet(ctx, bob, uuid.New())
	require.True(t, isNotFound(err), "expected not found, got %v", err)
	_, err = store.UnlikeTweet(ctx, bob, uuid.New())
	require.True(t, isNotFound(err), "expected not found, got %v", err)
}

func testConcurrentLikes(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice, bob := newUser(), newUser()
	created := tweet(t, ctx, store, alice, "popular")

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := store.LikeTweet(ctx, bob, created.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := store.GetTweet(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, []model.UserRef{{ID: bob}}, got.Likes)
}

func testPopulation(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice, bob := newUser(), newUser()
	_, err := store.UpsertUser(ctx, alice, "Alice")
	require.NoError(t, err)

	root := tweet(t, ctx, store, alice, "root")
	_, err = store.LikeTweet(ctx, bob, root.ID)
	require.NoError(t, err)

	reply, err := store.CreateTweet(ctx, bob, registrystore.CreateTweetRequest{
		TweetText: "reply", Type: model.TweetTypeThreaded, ThreadedTweet: &root.ID,
	})
	require.NoError(t, err)

	got, err := store.GetTweet(ctx, reply.ID)
	require.NoError(t, err)
	require.Equal(t, model.UserRef{ID: bob}, got.User)
	require.NotNil(t, got.ThreadedTweet)
	require.Equal(t, root.ID, got.ThreadedTweet.ID)
	require.Equal(t, []string{bob}, got.ThreadedTweet.Likes)
	require.Nil(t, got.RetweetedTweet)

	got, err = store.GetTweet(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, model.UserRef{ID: alice, Name: "Alice"}, got.User)

	n, err := store.DeleteTweet(ctx, alice, root.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err = store.GetTweet(ctx, reply.ID)
	require.NoError(t, err)
	require.Nil(t, got.ThreadedTweet)
	require.Equal(t, "reply", got.TweetText)
}

func testConversation(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice, bob, carol := newUser(), newUser(), newUser()

	_, err := store.SendMessage(ctx, alice, registrystore.SendMessageRequest{To: bob})
	require.Equal(t, "message", validationField(t, err))

	for i, msg := range []struct{ from, to, text string }{
		{alice, bob, "hi bob"},
		{bob, alice, "hi alice"},
		{alice, carol, "hi carol"},
		{alice, bob, "bye"},
	} {
		sent, err := store.SendMessage(ctx, msg.from, registrystore.SendMessageRequest{To: msg.to, Message: msg.text})
		require.NoError(t, err, "message %d", i)
		require.Equal(t, msg.from, sent.From)
		require.Equal(t, msg.to, sent.To)
		time.Sleep(2 * time.Millisecond)
	}

	page, err := store.GetConversation(ctx, alice, bob, registrystore.PageOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.TotalResults)
	require.Equal(t, "hi bob", page.Results[0].Message)
	require.Equal(t, "hi alice", page.Results[1].Message)
	require.Equal(t, "bye", page.Results[2].Message)

	reverse, err := store.GetConversation(ctx, bob, alice, registrystore.PageOptions{})
	require.NoError(t, err)
	require.Equal(t, page.TotalResults, reverse.TotalResults)
	for i := range page.Results {
		require.Equal(t, page.Results[i].ID, reverse.Results[i].ID)
	}

	page, err = store.GetConversation(ctx, alice, bob, registrystore.PageOptions{SortBy: "createdAt:desc", Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalPages)
	require.Equal(t, "bye", page.Results[0].Message)

	page, err = store.GetConversation(ctx, bob, carol, registrystore.PageOptions{})
	require.NoError(t, err)
	require.Empty(t, page.Results)
	require.Equal(t, 0, page.TotalPages)
}

func testUsers(t *testing.T, ctx context.Context, store registrystore.SocialStore) {
	alice := newUser()
	_, err := store.GetUser(ctx, alice)
	require.True(t, isNotFound(err), "expected not found, got %v", err)

	_, err = store.UpsertUser(ctx, alice, " ")
	require.Equal(t, "name", validationField(t, err))

	created, err := store.UpsertUser(ctx, alice, "Alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", created.Name)

	time.Sleep(2 * time.Millisecond)
	renamed, err := store.UpsertUser(ctx, alice, "Alice Liddell")
	require.NoError(t, err)
	require.Equal(t, "Alice Liddell", renamed.Name)
	require.True(t, renamed.CreatedAt.Equal(created.CreatedAt))

	got, err := store.GetUser(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "Alice Liddell", got.Name)
}
