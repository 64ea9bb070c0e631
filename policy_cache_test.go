package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-rbac"
)

type countingPolicyStore struct {
	auth.PolicyStore
	gets int
}

func (s *countingPolicyStore) Get(ctx context.Context, route, method string) (*auth.RoutePolicy, error) {
	s.gets++
	return s.PolicyStore.Get(ctx, route, method)
}

func TestCachedPolicyStore(t *testing.T) {
	ctx := context.Background()
	backing := &countingPolicyStore{PolicyStore: auth.NewMemoryPolicyStore()}
	_, err := backing.Upsert(ctx, "/users", "POST", []string{"admin"}, nil)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics, err := auth.NewMetrics(registry)
	require.NoError(t, err)

	cache := auth.NewCachedPolicyStore(backing, 0, 0).WithMetrics(metrics)

	t.Run("hits are served from cache", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			policy, err := cache.Get(ctx, "/users", "POST")
			require.NoError(t, err)
			assert.Equal(t, []string{"admin"}, policy.RequiredRoles)
		}
		assert.Equal(t, 1, backing.gets)
		assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PolicyCacheTotal.WithLabelValues("hit")))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PolicyCacheTotal.WithLabelValues("miss")))
	})

	t.Run("cached policies can not be mutated", func(t *testing.T) {
		policy, err := cache.Get(ctx, "/users", "POST")
		require.NoError(t, err)
		policy.RequiredRoles[0] = "user"

		again, err := cache.Get(ctx, "/users", "POST")
		require.NoError(t, err)
		assert.Equal(t, []string{"admin"}, again.RequiredRoles)
	})

	t.Run("misses are cached", func(t *testing.T) {
		before := backing.gets
		for i := 0; i < 2; i++ {
			_, err := cache.Get(ctx, "/health", "GET")
			assert.ErrorIs(t, err, auth.ErrRoutePolicyNotFound)
		}
		assert.Equal(t, before+1, backing.gets)
	})

	t.Run("upsert invalidates", func(t *testing.T) {
		_, err := cache.Upsert(ctx, "/users", "POST", []string{"owner"}, nil)
		require.NoError(t, err)

		policy, err := cache.Get(ctx, "/users", "POST")
		require.NoError(t, err)
		assert.Equal(t, []string{"owner"}, policy.RequiredRoles)

		_, err = cache.Upsert(ctx, "/health", "get", nil, nil)
		require.NoError(t, err)
		_, err = cache.Get(ctx, "/health", "GET")
		assert.NoError(t, err)
	})

	t.Run("delete invalidates", func(t *testing.T) {
		require.NoError(t, cache.Delete(ctx, "/users", "POST"))
		_, err := cache.Get(ctx, "/users", "POST")
		assert.ErrorIs(t, err, auth.ErrRoutePolicyNotFound)
	})

	t.Run("purge", func(t *testing.T) {
		_, err := backing.Upsert(ctx, "/users", "POST", []string{"admin"}, nil)
		require.NoError(t, err)

		// written behind the cache, still a cached miss
		_, err = cache.Get(ctx, "/users", "POST")
		assert.ErrorIs(t, err, auth.ErrRoutePolicyNotFound)

		cache.Purge()
		_, err = cache.Get(ctx, "/users", "POST")
		assert.NoError(t, err)
	})

	t.Run("list passes through", func(t *testing.T) {
		all, err := cache.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestCachedPolicyStore_TTL(t *testing.T) {
	ctx := context.Background()
	backing := &countingPolicyStore{PolicyStore: auth.NewMemoryPolicyStore()}
	cache := auth.NewCachedPolicyStore(backing, 8, 20*time.Millisecond)

	_, err := cache.Get(ctx, "/users", "POST")
	assert.ErrorIs(t, err, auth.ErrRoutePolicyNotFound)

	_, err = backing.Upsert(ctx, "/users", "POST", []string{"admin"}, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := cache.Get(ctx, "/users", "POST")
		return err == nil
	}, time.Second, 10*time.Millisecond)
}
