package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/model"
	"github.com/chirino/social-service/internal/plugin/store/postgres"
	registrymigrate "github.com/chirino/social-service/internal/registry/migrate"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/testutil/storetest"
	"github.com/chirino/social-service/internal/testutil/testpg"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, datastore string, dbURL string, mutate ...func(*config.Config)) (registrystore.SocialStore, context.Context) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DatastoreType = datastore
	cfg.DBURL = dbURL
	for _, m := range mutate {
		m(&cfg)
	}
	ctx, cancel := context.WithCancel(config.WithContext(context.Background(), &cfg))
	t.Cleanup(cancel)

	// Ensure the SQL store plugins are registered
	_ = postgres.ForceImport

	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select(datastore)
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	return store, ctx
}

func TestSQLiteStore(t *testing.T) {
	store, ctx := setupStore(t, "sqlite", testsqlite.URL(t))
	storetest.Run(t, ctx, store)
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	store, ctx := setupStore(t, "postgres", testpg.StartPostgres(t))
	storetest.Run(t, ctx, store)
}

func TestMigrationIsIdempotent(t *testing.T) {
	dbURL := testsqlite.URL(t)
	setupStore(t, "sqlite", dbURL)
	setupStore(t, "sqlite", dbURL)
}

func TestStrictReferences(t *testing.T) {
	store, ctx := setupStore(t, "sqlite", testsqlite.URL(t), func(cfg *config.Config) {
		cfg.StrictReferences = true
	})

	dangling := uuid.New()
	_, err := store.CreateTweet(ctx, "alice", registrystore.CreateTweetRequest{
		Type: model.TweetTypeRetweet, RetweetedTweet: &dangling,
	})
	var verr *registrystore.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "retweetedTweet", verr.Field)

	root, err := store.CreateTweet(ctx, "alice", registrystore.CreateTweetRequest{TweetText: "root", Type: model.TweetTypeTweet})
	require.NoError(t, err)
	_, err = store.CreateTweet(ctx, "bob", registrystore.CreateTweetRequest{
		Type: model.TweetTypeRetweet, RetweetedTweet: &root.ID,
	})
	require.NoError(t, err)
}

func TestClearAll(t *testing.T) {
	store, ctx := setupStore(t, "sqlite", testsqlite.URL(t))
	_, err := store.CreateTweet(ctx, "alice", registrystore.CreateTweetRequest{TweetText: "hi", Type: model.TweetTypeTweet})
	require.NoError(t, err)

	require.NoError(t, store.(*postgres.SQLStore).ClearAll(ctx))

	page, err := store.ListTweets(ctx, registrystore.TweetFilter{}, registrystore.PageOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(0), page.TotalResults)
}
