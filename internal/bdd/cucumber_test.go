package bdd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chirino/social-service/internal/cmd/serve"
	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/plugin/store/postgres"
	"github.com/chirino/social-service/internal/testutil/cucumber"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"

	// Import plugins to trigger init() registration
	_ "github.com/chirino/social-service/internal/plugin/events/noop"
	_ "github.com/chirino/social-service/internal/plugin/route/system"
)

func TestFeatures(t *testing.T) {
	_ = postgres.ForceImport

	dbURL := testsqlite.URL(t)

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = dbURL

	runFeatures(t, &cfg, &SQLiteTestDB{DBURL: dbURL}, nil)
}

// runFeatures starts the server for cfg and runs every feature file under
// testdata/features against it, one godog suite per file. Scenarios tagged
// @events only run when extra carries a redisURL to observe events on.
func runFeatures(t *testing.T, cfg *config.Config, db cucumber.TestDB, extra map[string]interface{}) {
	t.Helper()

	cfg.Listener.Port = 0
	cfg.Listener.EnableTLS = false
	ctx, cancel := context.WithCancel(config.WithContext(context.Background(), cfg))
	t.Cleanup(cancel)

	srv, err := serve.StartServer(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	apiURL := fmt.Sprintf("http://localhost:%d", srv.Running.Port)

	featuresDir := filepath.Join("testdata", "features")
	featureFiles, err := filepath.Glob(filepath.Join(featuresDir, "*.feature"))
	require.NoError(t, err)
	require.NotEmpty(t, featureFiles, "No feature files found in %s", featuresDir)

	opts := cucumber.DefaultOptions()
	opts.Concurrency = 1
	if _, ok := extra["redisURL"]; !ok {
		opts.Tags = "~@events"
	}
	for _, arg := range os.Args[1:] {
		if arg == "-test.v=true" || arg == "-test.v" || arg == "-v" {
			opts.Format = "pretty"
		}
	}

	for _, featurePath := range featureFiles {
		name := strings.TrimSuffix(filepath.Base(featurePath), ".feature")
		t.Run(name, func(t *testing.T) {
			o := opts
			o.TestingT = t
			o.Paths = []string{featurePath}
			defer cucumber.ApplyReportOptions(&o, t.Name())()

			suite := cucumber.NewTestSuite()
			suite.APIURL = apiURL
			suite.TestingT = t
			suite.Context = cfg
			suite.DB = db
			for k, v := range extra {
				suite.Extra[k] = v
			}

			status := godog.TestSuite{
				Name:                name,
				Options:             &o,
				ScenarioInitializer: suite.InitializeScenario,
			}.Run()
			if status != 0 {
				t.Fail()
			}
		})
	}
}
