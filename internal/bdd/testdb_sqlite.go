package bdd

import (
	"context"
	"fmt"

	"github.com/chirino/social-service/internal/config"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/testutil/cucumber"
)

// SQLiteTestDB implements cucumber.TestDB for SQLite by opening a second
// store on the same database file.
type SQLiteTestDB struct {
	DBURL string
}

var _ cucumber.TestDB = (*SQLiteTestDB)(nil)

type clearer interface {
	ClearAll(ctx context.Context) error
	Close() error
}

func (s *SQLiteTestDB) ClearAll(ctx context.Context) error {
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = s.DBURL
	ctx, cancel := context.WithCancel(config.WithContext(ctx, &cfg))
	defer cancel()

	loader, err := registrystore.Select("sqlite")
	if err != nil {
		return err
	}
	store, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("cleanup: open sqlite store: %w", err)
	}
	c, ok := store.(clearer)
	if !ok {
		return fmt.Errorf("cleanup: %T cannot be cleared", store)
	}
	defer c.Close()
	return c.ClearAll(ctx)
}
