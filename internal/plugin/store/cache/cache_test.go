package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chirino/social-service/internal/model"
	"github.com/chirino/social-service/internal/plugin/store/cache"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/testutil/testsqlite"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu    sync.Mutex
	users map[string]model.User
	gets  int
	err   error
}

func newMapCache() *mapCache { return &mapCache{users: map[string]model.User{}} }

func (m *mapCache) Available() bool { return true }

func (m *mapCache) Get(_ context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *mapCache) Set(_ context.Context, user model.User, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.users[user.ID] = user
	return nil
}

func (m *mapCache) Remove(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

type unavailableCache struct{ mapCache }

func (u *unavailableCache) Available() bool { return false }

func TestGetUserReadsThrough(t *testing.T) {
	inner, ctx := testsqlite.OpenStore(t)
	c := newMapCache()
	store := cache.Wrap(inner, c)

	_, err := inner.UpsertUser(ctx, "alice", "Alice")
	require.NoError(t, err)

	user, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.Name)
	require.Contains(t, c.users, "alice")

	// Served from the cache even though the row changed underneath.
	_, err = inner.UpsertUser(ctx, "alice", "Changed")
	require.NoError(t, err)
	user, err = store.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.Name)
}

func TestUpsertUserWritesThrough(t *testing.T) {
	inner, ctx := testsqlite.OpenStore(t)
	c := newMapCache()
	store := cache.Wrap(inner, c)

	_, err := store.UpsertUser(ctx, "bob", "Bob")
	require.NoError(t, err)
	_, err = store.UpsertUser(ctx, "bob", "Robert")
	require.NoError(t, err)
	require.Equal(t, "Robert", c.users["bob"].Name)

	user, err := store.GetUser(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "Robert", user.Name)
}

func TestMissesAreNotCached(t *testing.T) {
	inner, ctx := testsqlite.OpenStore(t)
	c := newMapCache()
	store := cache.Wrap(inner, c)

	_, err := store.GetUser(ctx, "nobody")
	var notFound *registrystore.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Empty(t, c.users)
}

func TestCacheFailuresFallBackToStore(t *testing.T) {
	inner, ctx := testsqlite.OpenStore(t)
	c := newMapCache()
	c.err = errors.New("cache down")
	store := cache.Wrap(inner, c)

	_, err := store.UpsertUser(ctx, "carol", "Carol")
	require.NoError(t, err)
	user, err := store.GetUser(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, "Carol", user.Name)
}

func TestUnavailableCacheIsBypassed(t *testing.T) {
	inner, _ := testsqlite.OpenStore(t)
	require.Same(t, inner, cache.Wrap(inner, &unavailableCache{}))
	require.Same(t, inner, cache.Wrap(inner, nil))
}
