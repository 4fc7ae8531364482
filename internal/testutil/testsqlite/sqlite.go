package testsqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/plugin/store/postgres"
	registrymigrate "github.com/chirino/social-service/internal/registry/migrate"
	registrystore "github.com/chirino/social-service/internal/registry/store"
)

// URL returns a DSN for a fresh sqlite database file in a test temp dir.
// Transactions begin immediate so concurrent writers wait on the busy timeout
// instead of failing on lock upgrade.
func URL(tb testing.TB) string {
	tb.Helper()
	return "file:" + filepath.Join(tb.TempDir(), "social.db") + "?_busy_timeout=5000&_txlock=immediate"
}

// OpenStore migrates a fresh sqlite database and returns a store for it along
// with a context carrying its config.
func OpenStore(tb testing.TB) (registrystore.SocialStore, context.Context) {
	tb.Helper()
	_ = postgres.ForceImport

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = URL(tb)
	ctx, cancel := context.WithCancel(config.WithContext(context.Background(), &cfg))
	tb.Cleanup(cancel)

	if err := registrymigrate.RunAll(ctx); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	loader, err := registrystore.Select("sqlite")
	if err != nil {
		tb.Fatalf("select sqlite store: %v", err)
	}
	store, err := loader(ctx)
	if err != nil {
		tb.Fatalf("open sqlite store: %v", err)
	}
	return store, ctx
}
