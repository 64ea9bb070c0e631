package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryPolicyStore is an in-process PolicyStore, useful for tests and for
// deployments that load policies from configuration.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*RoutePolicy
	now      func() time.Time
}

// NewMemoryPolicyStore returns an empty store
func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		policies: make(map[string]*RoutePolicy),
		now:      time.Now,
	}
}

// PolicyKey is the exact lookup key of a (route, method) pair
func PolicyKey(route, method string) string {
	return NormalizeMethod(method) + " " + route
}

func (s *MemoryPolicyStore) Get(_ context.Context, route, method string) (*RoutePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[PolicyKey(route, method)]
	if !ok {
		return nil, ErrRoutePolicyNotFound
	}
	return policy.Clone(), nil
}

// Upsert replaces the requirement sets of an existing policy, keeping its id
func (s *MemoryPolicyStore) Upsert(_ context.Context, route, method string, roles, permissions []string) (*RoutePolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := PolicyKey(route, method)
	policy, ok := s.policies[key]
	if !ok {
		policy = &RoutePolicy{
			ID:        uuid.New(),
			Route:     route,
			Method:    NormalizeMethod(method),
			CreatedAt: &now,
		}
		s.policies[key] = policy
	}
	policy.RequiredRoles = NormalizeSet(roles)
	policy.RequiredPermissions = NormalizeSet(permissions)
	policy.UpdatedAt = &now

	return policy.Clone(), nil
}

func (s *MemoryPolicyStore) Delete(_ context.Context, route, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, PolicyKey(route, method))
	return nil
}

// List returns policies ordered by route then method
func (s *MemoryPolicyStore) List(_ context.Context) ([]*RoutePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RoutePolicy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p.Clone())
	}
	SortRoutePolicies(out)
	return out, nil
}

// SortRoutePolicies orders policies by route then method
func SortRoutePolicies(policies []*RoutePolicy) {
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Route != policies[j].Route {
			return policies[i].Route < policies[j].Route
		}
		return policies[i].Method < policies[j].Method
	})
}
