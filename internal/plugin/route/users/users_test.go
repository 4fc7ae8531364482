package users_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/plugin/route/users"
	"github.com/chirino/social-service/internal/security"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestProfileRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _ := testsqlite.OpenStore(t)
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	r := gin.New()
	users.MountRoutes(r, store, security.AuthMiddleware(security.NewTokenResolver(&cfg)))

	serve := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodGet, "/v1/users/alice", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodPut, "/v1/users/me", "", `{"name":"Alice"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(http.MethodPut, "/v1/users/me", "alice", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(http.MethodPut, "/v1/users/me", "alice", `{"name":"Alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		User struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "alice", out.User.ID)
	require.Equal(t, "Alice", out.User.Name)

	rec = serve(http.MethodGet, "/v1/users/alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"Alice"`)
}
