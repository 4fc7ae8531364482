package tweets_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/plugin/route/tweets"
	"github.com/chirino/social-service/internal/security"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, _ := testsqlite.OpenStore(t)

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	r := gin.New()
	tweets.MountRoutes(r, store, security.AuthMiddleware(security.NewTokenResolver(&cfg)))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func createTweet(t *testing.T, r *gin.Engine, user string, body map[string]any) string {
	t.Helper()
	code, out := do(t, r, http.MethodPost, "/v1/tweet", user, body)
	require.Equal(t, http.StatusCreated, code, out)
	return out["tweet"].(map[string]any)["id"].(string)
}

func TestCreateTweet(t *testing.T) {
	r := setupRouter(t)

	code, out := do(t, r, http.MethodPost, "/v1/tweet", "alice", map[string]any{"tweetText": "hello", "type": "tweet"})
	require.Equal(t, http.StatusCreated, code)
	tweet := out["tweet"].(map[string]any)
	require.Equal(t, "alice", tweet["user"])
	require.Equal(t, "hello", tweet["tweetText"])
	require.Equal(t, []any{}, tweet["likes"])

	code, _ = do(t, r, http.MethodPost, "/v1/tweet", "", map[string]any{"tweetText": "hello", "type": "tweet"})
	require.Equal(t, http.StatusUnauthorized, code)

	code, out = do(t, r, http.MethodPost, "/v1/tweet", "alice", map[string]any{"tweetText": "hello", "type": "poll"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "validation_error", out["code"])
	require.Equal(t, "type", out["field"])

	code, out = do(t, r, http.MethodPost, "/v1/tweet", "alice", map[string]any{"type": "threaded", "tweetText": "re", "threadedTweet": "not-a-uuid"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "threadedTweet", out["field"])

	code, _ = do(t, r, http.MethodPost, "/v1/tweet", "alice", map[string]any{"tweetText": "no type"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestGetTweet(t *testing.T) {
	r := setupRouter(t)
	root := createTweet(t, r, "alice", map[string]any{"tweetText": "root", "type": "tweet"})
	rt := createTweet(t, r, "bob", map[string]any{"type": "retweet", "retweetedTweet": root})

	code, out := do(t, r, http.MethodGet, "/v1/tweet/"+rt, "", nil)
	require.Equal(t, http.StatusOK, code)
	tweet := out["tweet"].(map[string]any)
	require.Equal(t, map[string]any{"id": "bob"}, tweet["user"])
	require.Equal(t, root, tweet["retweetedTweet"].(map[string]any)["id"])
	require.Nil(t, tweet["threadedTweet"])

	code, out = do(t, r, http.MethodGet, "/v1/tweet/"+uuid.NewString(), "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, out, "tweet")
	require.Nil(t, out["tweet"])

	code, _ = do(t, r, http.MethodGet, "/v1/tweet/nope", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestListTweets(t *testing.T) {
	r := setupRouter(t)
	for i := 0; i < 3; i++ {
		createTweet(t, r, "alice", map[string]any{"tweetText": "a", "type": "tweet"})
	}
	createTweet(t, r, "bob", map[string]any{"tweetText": "b", "type": "tweet"})

	code, out := do(t, r, http.MethodGet, "/v1/tweet?user=alice&limit=2&page=2", "", nil)
	require.Equal(t, http.StatusOK, code)
	page := out["tweets"].(map[string]any)
	require.Equal(t, float64(3), page["totalResults"])
	require.Equal(t, float64(2), page["totalPages"])
	require.Equal(t, float64(2), page["page"])
	require.Len(t, page["results"], 1)

	code, out = do(t, r, http.MethodGet, "/v1/tweet?limit=5abc", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "limit", out["field"])

	code, out = do(t, r, http.MethodGet, "/v1/tweet?limit=0", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(10), out["tweets"].(map[string]any)["limit"])

	code, out = do(t, r, http.MethodGet, "/v1/tweet?limit=100000&page=9223372036854775807", "", nil)
	require.Equal(t, http.StatusOK, code)
	page = out["tweets"].(map[string]any)
	require.Equal(t, float64(100), page["limit"])
	require.Equal(t, float64(1), page["totalPages"])
	require.Len(t, page["results"], 0)

	code, out = do(t, r, http.MethodGet, "/v1/tweet?sortBy=password:asc", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "sortBy", out["field"])

	code, _ = do(t, r, http.MethodGet, "/v1/tweet?type=poll", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	r := setupRouter(t)
	id := createTweet(t, r, "alice", map[string]any{"tweetText": "draft", "type": "tweet"})

	code, out := do(t, r, http.MethodPut, "/v1/tweet/"+id, "bob", map[string]any{"tweetText": "mine now"})
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "not_found", out["code"])

	code, out = do(t, r, http.MethodPut, "/v1/tweet/"+id, "alice", map[string]any{"tweetText": "final"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "final", out["tweet"].(map[string]any)["tweetText"])

	code, _ = do(t, r, http.MethodPut, "/v1/tweet/"+id, "alice", map[string]any{"tweetText": ""})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodDelete, "/v1/tweet/"+id, "bob", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, out = do(t, r, http.MethodDelete, "/v1/tweet/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), out["deletedCount"])

	code, _ = do(t, r, http.MethodDelete, "/v1/tweet/"+id, "alice", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestLikeAndUnlike(t *testing.T) {
	r := setupRouter(t)
	id := createTweet(t, r, "alice", map[string]any{"tweetText": "like me", "type": "tweet"})

	code, out := do(t, r, http.MethodPost, "/v1/tweet/"+id+"/like", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{map[string]any{"id": "bob"}}, out["tweet"].(map[string]any)["likes"])

	code, out = do(t, r, http.MethodPost, "/v1/tweet/"+id+"/like", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out["tweet"].(map[string]any)["likes"], 1)

	code, out = do(t, r, http.MethodDelete, "/v1/tweet/"+id+"/like", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{}, out["tweet"].(map[string]any)["likes"])

	code, _ = do(t, r, http.MethodPost, "/v1/tweet/"+uuid.NewString()+"/like", "bob", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPost, "/v1/tweet/"+id+"/like", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
}
