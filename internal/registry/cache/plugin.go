package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/social-service/internal/model"
)

// UserCache caches user profiles by user ID.
type UserCache interface {
	Available() bool
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, userID string) (*model.User, error)
	Set(ctx context.Context, user model.User, ttl time.Duration) error
	Remove(ctx context.Context, userID string) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (UserCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
