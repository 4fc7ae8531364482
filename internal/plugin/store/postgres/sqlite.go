package postgres

import (
	"context"

	"github.com/chirino/social-service/internal/config"
	registrymigrate "github.com/chirino/social-service/internal/registry/migrate"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// The sqlite datastore shares SQLStore with postgres. DBURL is a sqlite DSN such
// as "file:social.db?_busy_timeout=5000&_txlock=immediate".
func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "sqlite",
		Loader: func(ctx context.Context) (registrystore.SocialStore, error) {
			cfg := config.FromContext(ctx)
			return open(ctx, cfg, sqlite.Open(cfg.DBURL))
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &sqlMigrator{
		kind:   "sqlite",
		schema: sqliteSchemaSQL,
		dialector: func(cfg *config.Config) gorm.Dialector {
			return sqlite.Open(cfg.DBURL)
		},
	}})
}
