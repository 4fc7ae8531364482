package bdd

import (
	"context"
	"fmt"

	"github.com/chirino/social-service/internal/testutil/cucumber"
	"github.com/jackc/pgx/v5"
)

// PostgresTestDB implements cucumber.TestDB for Postgres.
type PostgresTestDB struct {
	DBURL string
}

var _ cucumber.TestDB = (*PostgresTestDB)(nil)

func (p *PostgresTestDB) ClearAll(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.DBURL)
	if err != nil {
		return fmt.Errorf("cleanup: failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "TRUNCATE tweet_likes, tweets, chats, users"); err != nil {
		return fmt.Errorf("cleanup: failed to truncate tables: %w", err)
	}
	return nil
}
