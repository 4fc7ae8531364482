package bdd

import (
	"testing"

	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/testutil/testpg"
	"github.com/chirino/social-service/internal/testutil/testrabbitmq"

	// Import plugins to trigger init() registration
	_ "github.com/chirino/social-service/internal/plugin/events/rabbitmq"
)

func TestFeaturesPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container backed features in short mode")
	}

	dbURL := testpg.StartPostgres(t)
	amqpURL := testrabbitmq.StartRabbitMQ(t)

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	cfg.DatastoreType = "postgres"
	cfg.DBURL = dbURL
	cfg.EventsType = "rabbitmq"
	cfg.RabbitMQURL = amqpURL
	cfg.StrictReferences = true

	runFeatures(t, &cfg, &PostgresTestDB{DBURL: dbURL}, nil)
}
