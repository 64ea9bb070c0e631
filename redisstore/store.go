// Package redisstore keeps route policies in Redis so every instance of a
// service shares them without a database.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-auth-rbac"
)

// DefaultPrefix namespaces every key written by the store
const DefaultPrefix = "auth:"

// PolicyStore implements auth.PolicyStore on top of Redis. Each policy is
// a JSON string under "<prefix>policy:<METHOD> <route>" and the set
// "<prefix>policies" indexes the keys for List.
type PolicyStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ auth.PolicyStore = (*PolicyStore)(nil)

// New wraps an existing client
func New(client *redis.Client, prefix string) *PolicyStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &PolicyStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Connect parses url, pings the server and returns a store
func Connect(ctx context.Context, url, prefix string) (*PolicyStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid redis URL").
			WithTextCode(auth.TextCodeInvalidConfig)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(err, "failed to connect to redis")
	}

	return New(client, prefix), nil
}

// Close releases the underlying client
func (s *PolicyStore) Close() error {
	return s.client.Close()
}

func (s *PolicyStore) key(route, method string) string {
	return s.prefix + "policy:" + auth.PolicyKey(route, method)
}

func (s *PolicyStore) indexKey() string {
	return s.prefix + "policies"
}

func (s *PolicyStore) Get(ctx context.Context, route, method string) (*auth.RoutePolicy, error) {
	data, err := s.client.Get(ctx, s.key(route, method)).Result()
	if err == redis.Nil {
		return nil, auth.ErrRoutePolicyNotFound
	} else if err != nil {
		return nil, unavailable(err, "redis get failed")
	}
	return decode(data)
}

// Upsert keeps the id and creation time of an existing policy
func (s *PolicyStore) Upsert(ctx context.Context, route, method string, roles, permissions []string) (*auth.RoutePolicy, error) {
	now := s.now()

	policy, err := s.Get(ctx, route, method)
	if err != nil {
		if !errors.Is(err, auth.ErrRoutePolicyNotFound) {
			return nil, err
		}
		policy = &auth.RoutePolicy{
			ID:        uuid.New(),
			Route:     route,
			Method:    auth.NormalizeMethod(method),
			CreatedAt: &now,
		}
	}
	policy.RequiredRoles = auth.NormalizeSet(roles)
	policy.RequiredPermissions = auth.NormalizeSet(permissions)
	policy.UpdatedAt = &now

	data, err := json.Marshal(policy)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to marshal route policy")
	}

	key := s.key(route, method)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.SAdd(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return nil, unavailable(err, "redis upsert failed")
	}
	return policy, nil
}

func (s *PolicyStore) Delete(ctx context.Context, route, method string) error {
	key := s.key(route, method)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return unavailable(err, "redis delete failed")
	}
	return nil
}

// List returns policies ordered by route then method. Index entries whose
// key has vanished are dropped from the index.
func (s *PolicyStore) List(ctx context.Context) ([]*auth.RoutePolicy, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, unavailable(err, "redis list failed")
	}

	out := make([]*auth.RoutePolicy, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err, "redis list failed")
	}

	for i, raw := range values {
		data, ok := raw.(string)
		if !ok {
			s.client.SRem(ctx, s.indexKey(), keys[i])
			continue
		}
		policy, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, policy)
	}

	auth.SortRoutePolicies(out)
	return out, nil
}

func decode(data string) (*auth.RoutePolicy, error) {
	policy := &auth.RoutePolicy{}
	if err := json.Unmarshal([]byte(data), policy); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to unmarshal route policy").
			WithTextCode(auth.TextCodeStoreUnavailable)
	}
	return policy, nil
}

func unavailable(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode(auth.TextCodeStoreUnavailable)
}
