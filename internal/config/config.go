package config

import (
	"context"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

// Config holds all configuration for the social service.
type Config struct {
	// Mode controls security behavior: "prod" (default) or "testing".
	// In testing mode the bearer token is accepted as the caller's user ID.
	Mode string

	// Database
	DBURL string
	// DBName is the MongoDB database name. Ignored by the SQL stores.
	DBName string

	// Datastore backend type: "mongo", "postgres" or "sqlite".
	DatastoreType string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// StrictReferences makes tweet creation reject threaded/retweeted
	// references that do not resolve to an existing tweet.
	StrictReferences bool

	// Events backend type: "none", "rabbitmq" or "redis".
	EventsType string

	// RabbitMQ
	RabbitMQURL      string
	RabbitMQExchange string

	// Redis, shared by the redis events and cache backends.
	RedisURL           string
	RedisChannelPrefix string

	// Cache backend type for user profiles: "none" or "redis".
	CacheType string
	CacheTTL  time.Duration

	// OIDC
	OIDCIssuer       string
	OIDCDiscoveryURL string // Internal URL for OIDC discovery (when issuer URL is not reachable)

	// JWTSecret enables HMAC signed bearer tokens. JWTUserClaim names the
	// claim holding the user ID.
	JWTSecret    string
	JWTUserClaim string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	// Defaults to "service=social-service".
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port (or SOCIAL_SERVICE_MANAGEMENT_PORT)
	// was explicitly provided. When false, management endpoints are served on the main port.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for management endpoints (/health, /ready, /metrics).
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// Body size limit (bytes)
	MaxBodySize int64

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DatastoreType:           "mongo",
		DBName:                  "social_service",
		DatastoreMigrateAtStart: true,
		EventsType:              "none",
		RabbitMQExchange:        "social.events",
		RedisChannelPrefix:      "social",
		CacheType:               "none",
		CacheTTL:                10 * time.Minute,
		JWTUserClaim:            "sub",
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			EnableTLS:         true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
			EnableTLS:       true,
		},
		MaxBodySize:    1024 * 1024,
		DrainTimeout:   30,
		DBMaxOpenConns: 25,
		DBMaxIdleConns: 5,
	}
}
