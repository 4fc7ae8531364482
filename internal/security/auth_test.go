package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chirino/social-service/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestResolve_TestingModeUsesTokenAsUser(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	r := NewTokenResolver(&cfg)

	id, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", id.UserID)
}

func TestResolve_ProdRejectsOpaqueTokens(t *testing.T) {
	cfg := config.DefaultConfig()
	r := NewTokenResolver(&cfg)

	_, err := r.Resolve(context.Background(), "alice")
	require.Error(t, err)
}

func TestResolve_HMAC(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "s3cret"
	r := NewTokenResolver(&cfg)
	ctx := context.Background()

	t.Run("subject claim", func(t *testing.T) {
		token := signHS256(t, "s3cret", jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()})
		id, err := r.Resolve(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "alice", id.UserID)
	})

	t.Run("user_id claim fallback", func(t *testing.T) {
		token := signHS256(t, "s3cret", jwt.MapClaims{"user_id": "bob"})
		id, err := r.Resolve(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "bob", id.UserID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signHS256(t, "other", jwt.MapClaims{"sub": "alice"})
		_, err := r.Resolve(ctx, token)
		require.ErrorIs(t, err, errInvalidJWT)
	})

	t.Run("expired", func(t *testing.T) {
		token := signHS256(t, "s3cret", jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()})
		_, err := r.Resolve(ctx, token)
		require.Error(t, err)
	})

	t.Run("no identity", func(t *testing.T) {
		token := signHS256(t, "s3cret", jwt.MapClaims{"scope": "read"})
		_, err := r.Resolve(ctx, token)
		require.ErrorIs(t, err, errMissingIdentity)
	})
}

func TestResolve_CustomClaim(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "s3cret"
	cfg.JWTUserClaim = "uid"
	r := NewTokenResolver(&cfg)

	token := signHS256(t, "s3cret", jwt.MapClaims{"sub": "ignored", "uid": "carol"})
	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "carol", id.UserID)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	router := gin.New()
	router.GET("/me", AuthMiddleware(NewTokenResolver(&cfg)), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not a bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Basic YWxpY2U6cHc=")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer alice")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "alice", rec.Body.String())
	})
}
