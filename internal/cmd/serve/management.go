package serve

import (
	"context"
	"net"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/chirino/social-service/internal/config"
)

// startManagementServer starts a dedicated server for management endpoints
// (health, readiness, metrics). Plaintext is enabled when neither mode is.
// Returns the bound address and a shutdown function.
func startManagementServer(ctx context.Context, cfg config.ListenerConfig, handler http.Handler) (net.Addr, func(context.Context) error, error) {
	if !cfg.EnablePlainText && !cfg.EnableTLS {
		cfg.EnablePlainText = true
	}
	running, err := StartSinglePortHTTP(ctx, "management", cfg, handler)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Management server listening", "addr", running.Addr)
	return running.Addr, running.Close, nil
}
