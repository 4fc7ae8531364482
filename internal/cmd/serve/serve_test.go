package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMaxBodySizeMiddleware_EnforcesLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(maxBodySizeMiddleware(4))
	router.POST("/v1/tweet", readBodyLengthHandler)

	req := httptest.NewRequest(http.MethodPost, "/v1/tweet", strings.NewReader("0123456789"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMaxBodySizeMiddleware_AllowsSmallBodies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(maxBodySizeMiddleware(16))
	router.PUT("/v1/users/me", readBodyLengthHandler)

	req := httptest.NewRequest(http.MethodPut, "/v1/users/me", strings.NewReader("0123456789"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "10", rec.Body.String())
}

func TestHasBody(t *testing.T) {
	require.False(t, hasBody(httptest.NewRequest(http.MethodGet, "/v1/tweet", nil)))
	require.False(t, hasBody(httptest.NewRequest(http.MethodPost, "/v1/tweet", nil)))
	require.True(t, hasBody(httptest.NewRequest(http.MethodPost, "/v1/tweet", strings.NewReader("{}"))))
}

func TestStartServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = testsqlite.URL(t)
	cfg.Listener.Port = 0
	cfg.Listener.EnableTLS = false
	ctx, cancel := context.WithCancel(config.WithContext(context.Background(), &cfg))
	defer cancel()

	srv, err := StartServer(ctx, &cfg)
	require.NoError(t, err)
	defer func() { _ = srv.Shutdown(context.Background()) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", srv.Running.Port)

	resp, err := http.Get(base + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, base+"/v1/tweet", strings.NewReader(`{"tweetText":"hi","type":"tweet"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer alice")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Contains(t, string(body), "social_service_requests_total")
}

func readBodyLengthHandler(c *gin.Context) {
	n, err := io.Copy(io.Discard, c.Request.Body)
	if err != nil {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}
	c.String(http.StatusOK, "%d", n)
}
