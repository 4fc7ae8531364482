package bdd

import (
	"testing"

	"github.com/chirino/social-service/internal/config"
	mongoplugin "github.com/chirino/social-service/internal/plugin/store/mongo"
	"github.com/chirino/social-service/internal/testutil/testmongo"
	"github.com/chirino/social-service/internal/testutil/testredis"

	// Import plugins to trigger init() registration
	_ "github.com/chirino/social-service/internal/plugin/events/redis"
)

func TestFeaturesMongo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container backed features in short mode")
	}
	_ = mongoplugin.ForceImport

	mongoURL := testmongo.StartMongo(t)
	redisURL := testredis.StartRedis(t)

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	cfg.DatastoreType = "mongo"
	cfg.DBURL = mongoURL
	cfg.EventsType = "redis"
	cfg.RedisURL = redisURL
	cfg.CacheType = "redis"

	runFeatures(t, &cfg, &MongoTestDB{DBURL: mongoURL, DBName: cfg.DBName}, map[string]interface{}{
		"redisURL":           redisURL,
		"redisChannelPrefix": cfg.RedisChannelPrefix,
	})
}
