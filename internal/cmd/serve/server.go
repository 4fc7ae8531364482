package serve

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/plugin/route/chats"
	routesystem "github.com/chirino/social-service/internal/plugin/route/system"
	"github.com/chirino/social-service/internal/plugin/route/tweets"
	"github.com/chirino/social-service/internal/plugin/route/users"
	storecache "github.com/chirino/social-service/internal/plugin/store/cache"
	storeevents "github.com/chirino/social-service/internal/plugin/store/events"
	storemetrics "github.com/chirino/social-service/internal/plugin/store/metrics"
	registrycache "github.com/chirino/social-service/internal/registry/cache"
	registryevents "github.com/chirino/social-service/internal/registry/events"
	registrymigrate "github.com/chirino/social-service/internal/registry/migrate"
	registryroute "github.com/chirino/social-service/internal/registry/route"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
	"github.com/gin-gonic/gin"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config          *config.Config
	Store           registrystore.SocialStore
	Router          *gin.Engine
	Running         *RunningServers
	publisher       registryevents.Publisher
	closeManagement func(context.Context) error
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.closeManagement != nil {
		_ = s.closeManagement(ctx)
	}
	err := s.Running.Close(ctx)
	if s.publisher != nil {
		if cerr := s.publisher.Close(); cerr != nil {
			log.Warn("Failed to close event publisher", "err", cerr)
		}
	}
	return err
}

// StartServer initializes all subsystems and starts HTTP on a single port.
// Use cfg.Listener.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting social service",
		"httpPort", cfg.Listener.Port,
		"mode", cfg.Mode,
		"db", cfg.DatastoreType,
		"events", cfg.EventsType,
		"cache", cfg.CacheType,
	)

	// Initialize Prometheus metrics with configured constant labels.
	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	// Run migrations
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// Initialize store
	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = storemetrics.Wrap(store)

	// The user profile cache sits outside the metrics wrapper.
	cacheType := cfg.CacheType
	if cacheType == "" {
		cacheType = "none"
	}
	cacheLoader, err := registrycache.Select(cacheType)
	if err != nil {
		return nil, err
	}
	userCache, err := cacheLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	store = storecache.Wrap(store, userCache)

	// Initialize the event publisher. Events are only published after the
	// store has committed, so the events wrapper sits outside the metrics one.
	eventsType := cfg.EventsType
	if eventsType == "" {
		eventsType = "none"
	}
	eventsLoader, err := registryevents.Select(eventsType)
	if err != nil {
		return nil, err
	}
	publisher, err := eventsLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	if eventsType != "none" {
		store = storeevents.Wrap(store, publisher)
	}

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	// Mount main route plugins on the main router.
	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	// Create shared token resolver and auth middleware.
	resolver := security.NewTokenResolver(cfg)
	auth := security.AuthMiddleware(resolver)

	tweets.MountRoutes(router, store, auth)
	chats.MountRoutes(router, store, auth)
	users.MountRoutes(router, store, auth)

	// Mount management route plugins. If a dedicated management port is configured,
	// run them on a bare gin engine served by the management server. Otherwise,
	// mount them on the main router.
	var closeManagement func(context.Context) error
	if cfg.ManagementListenerEnabled {
		mgmtRouter := gin.New()
		mgmtRouter.Use(gin.Recovery())
		if cfg.ManagementAccessLog {
			mgmtRouter.Use(security.AccessLogMiddleware())
		}
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(mgmtRouter); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
		// Management listener shares TLS cert/key with the main listener.
		mgmtCfg := cfg.ManagementListener
		mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
		mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
		_, closeManagement, err = startManagementServer(ctx, mgmtCfg, mgmtRouter)
		if err != nil {
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
	} else {
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(router); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
	}

	running, err := StartSinglePortHTTP(ctx, "main", cfg.Listener, router)
	if err != nil {
		if closeManagement != nil {
			_ = closeManagement(ctx)
		}
		return nil, err
	}

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
	)

	routesystem.MarkReady()
	return &Server{
		Config:          cfg,
		Store:           store,
		Router:          router,
		Running:         running,
		publisher:       publisher,
		closeManagement: closeManagement,
	}, nil
}
