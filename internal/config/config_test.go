package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, ModeProd, cfg.Mode)
	require.Equal(t, "mongo", cfg.DatastoreType)
	require.Equal(t, "none", cfg.EventsType)
	require.Equal(t, "none", cfg.CacheType)
	require.Equal(t, "sub", cfg.JWTUserClaim)
	require.False(t, cfg.StrictReferences)
	require.Equal(t, 8080, cfg.Listener.Port)
}

func TestFromContext_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), &cfg)
	require.Same(t, &cfg, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))
}
