package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultPolicyCacheSize bounds the number of cached (route, method) pairs
const DefaultPolicyCacheSize = 1024

// CachedPolicyStore keeps recent lookups in an expiring LRU in front of
// another PolicyStore. Misses are cached too so unregistered routes do not
// hit the backing store on every request. Writes through this store
// invalidate the affected key, writes made elsewhere are visible once the
// entry expires.
type CachedPolicyStore struct {
	next    PolicyStore
	cache   *lru.LRU[string, *RoutePolicy]
	metrics *Metrics
}

// NewCachedPolicyStore wraps next. A zero size uses DefaultPolicyCacheSize
// and a zero ttl keeps entries until evicted.
func NewCachedPolicyStore(next PolicyStore, size int, ttl time.Duration) *CachedPolicyStore {
	if size <= 0 {
		size = DefaultPolicyCacheSize
	}
	return &CachedPolicyStore{
		next:  next,
		cache: lru.NewLRU[string, *RoutePolicy](size, nil, ttl),
	}
}

func (s *CachedPolicyStore) WithMetrics(metrics *Metrics) *CachedPolicyStore {
	s.metrics = metrics
	return s
}

func (s *CachedPolicyStore) Get(ctx context.Context, route, method string) (*RoutePolicy, error) {
	key := PolicyKey(route, method)
	if policy, ok := s.cache.Get(key); ok {
		s.metrics.observeCache(true)
		if policy == nil {
			return nil, ErrRoutePolicyNotFound
		}
		return policy.Clone(), nil
	}
	s.metrics.observeCache(false)

	policy, err := s.next.Get(ctx, route, method)
	if err != nil {
		if errors.Is(err, ErrRoutePolicyNotFound) {
			s.cache.Add(key, nil)
		}
		return nil, err
	}
	s.cache.Add(key, policy.Clone())
	return policy, nil
}

func (s *CachedPolicyStore) Upsert(ctx context.Context, route, method string, roles, permissions []string) (*RoutePolicy, error) {
	defer s.cache.Remove(PolicyKey(route, method))
	return s.next.Upsert(ctx, route, method, roles, permissions)
}

func (s *CachedPolicyStore) Delete(ctx context.Context, route, method string) error {
	defer s.cache.Remove(PolicyKey(route, method))
	return s.next.Delete(ctx, route, method)
}

func (s *CachedPolicyStore) List(ctx context.Context) ([]*RoutePolicy, error) {
	return s.next.List(ctx)
}

// Purge drops every cached entry
func (s *CachedPolicyStore) Purge() {
	s.cache.Purge()
}
