package migrate

import (
	"context"
	"testing"

	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/stretchr/testify/require"
)

func TestMigrateCommand_SQLite(t *testing.T) {
	dbURL := testsqlite.URL(t)
	cmd := Command()
	require.NoError(t, cmd.Run(context.Background(), []string{"migrate", "--db-kind", "sqlite", "--db-url", dbURL}))
	// A second run finds everything in place.
	require.NoError(t, cmd.Run(context.Background(), []string{"migrate", "--db-kind", "sqlite", "--db-url", dbURL}))
}
