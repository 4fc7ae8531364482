package metrics_test

import (
	"testing"

	"github.com/chirino/social-service/internal/model"
	"github.com/chirino/social-service/internal/plugin/store/metrics"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestWrapRecordsLatency(t *testing.T) {
	security.InitMetrics(nil)
	inner, ctx := testsqlite.OpenStore(t)

	store := metrics.Wrap(inner)
	created, err := store.CreateTweet(ctx, "alice", registrystore.CreateTweetRequest{TweetText: "hi", Type: model.TweetTypeTweet})
	require.NoError(t, err)
	_, err = store.GetTweet(ctx, created.ID)
	require.NoError(t, err)

	require.Equal(t, 2, testutil.CollectAndCount(security.StoreLatency, "social_service_store_latency_seconds"))
}
