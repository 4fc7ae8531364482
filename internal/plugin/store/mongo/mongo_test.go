package mongo_test

import (
	"context"
	"testing"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/plugin/store/mongo"
	registrymigrate "github.com/chirino/social-service/internal/registry/migrate"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/testutil/storetest"
	"github.com/chirino/social-service/internal/testutil/testmongo"
	"github.com/stretchr/testify/require"
)

func TestMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "mongo"
	cfg.DBURL = testmongo.StartMongo(t)
	ctx := config.WithContext(context.Background(), &cfg)

	_ = mongo.ForceImport

	require.NoError(t, registrymigrate.RunAll(ctx))
	// Running the migration again must not fail on existing collections.
	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("mongo")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)

	storetest.Run(t, ctx, store)
}
