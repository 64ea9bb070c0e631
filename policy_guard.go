package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// PolicyGuardOptions tunes how policy guards treat routes without a policy
type PolicyGuardOptions struct {
	// DefaultDeny rejects requests to routes that have no policy. The
	// default allows them.
	DefaultDeny bool
}

// PolicyRoleGuard checks the roles the store declares for the request route
func PolicyRoleGuard(store PolicyStore, opts PolicyGuardOptions) Guard {
	return GuardFunc(func(ctx context.Context, req Request) error {
		policy, err := lookupPolicy(ctx, store, req)
		if err != nil {
			return err
		}
		if policy == nil {
			if opts.DefaultDeny {
				return ErrInsufficientRole
			}
			return nil
		}
		return checkRoles(policy.RequiredRoles, req.Caller)
	})
}

// PolicyPermissionGuard checks the permissions the store declares for the
// request route
func PolicyPermissionGuard(store PolicyStore, opts PolicyGuardOptions) Guard {
	return GuardFunc(func(ctx context.Context, req Request) error {
		policy, err := lookupPolicy(ctx, store, req)
		if err != nil {
			return err
		}
		if policy == nil {
			if opts.DefaultDeny {
				return ErrInsufficientPermission
			}
			return nil
		}
		return checkPermissions(policy.RequiredPermissions, req.Caller)
	})
}

// lookupPolicy returns nil, nil when the route has no policy
func lookupPolicy(ctx context.Context, store PolicyStore, req Request) (*RoutePolicy, error) {
	if store == nil {
		return nil, nil
	}
	policy, err := store.Get(ctx, req.Route, NormalizeMethod(req.Method))
	if err != nil {
		if errors.Is(err, ErrRoutePolicyNotFound) {
			return nil, nil
		}
		if IsStoreUnavailable(err) {
			return nil, err
		}
		return nil, storeFailure(err, "failed to load route policy")
	}
	return policy, nil
}
