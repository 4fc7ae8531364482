package cache

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/chirino/social-service/internal/model"
	registrycache "github.com/chirino/social-service/internal/registry/cache"
	"github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
)

// Wrap returns a SocialStore that serves GetUser from c and writes profiles
// through to c on UpsertUser. Cache failures are logged and fall back to the
// inner store. All other operations pass straight through.
func Wrap(inner store.SocialStore, c registrycache.UserCache) store.SocialStore {
	if c == nil || !c.Available() {
		return inner
	}
	return &cachedStore{SocialStore: inner, cache: c}
}

type cachedStore struct {
	store.SocialStore
	cache registrycache.UserCache
}

func countLookup(result string) {
	if security.UserCacheLookupsTotal != nil {
		security.UserCacheLookupsTotal.WithLabelValues(result).Inc()
	}
}

func (s *cachedStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	cached, err := s.cache.Get(ctx, userID)
	switch {
	case err != nil:
		countLookup("error")
		log.Warn("User cache lookup failed", "user", userID, "err", err)
	case cached != nil:
		countLookup("hit")
		return cached, nil
	default:
		countLookup("miss")
	}

	user, err := s.SocialStore.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, user)
	return user, nil
}

func (s *cachedStore) UpsertUser(ctx context.Context, userID string, name string) (*model.User, error) {
	user, err := s.SocialStore.UpsertUser(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, user)
	return user, nil
}

func (s *cachedStore) remember(ctx context.Context, user *model.User) {
	if err := s.cache.Set(ctx, *user, 0); err != nil {
		log.Warn("User cache update failed", "user", user.ID, "err", err)
		// A stale entry is worse than none.
		if err := s.cache.Remove(ctx, user.ID); err != nil {
			log.Warn("User cache eviction failed", "user", user.ID, "err", err)
		}
	}
}
