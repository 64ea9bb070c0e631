package auth

import "context"

// ClaimsDecorator can mutate roles, permissions and email before a token is
// signed. Registered claims (sub, iss, iat, exp, jti) and token_use are
// checked after the hook runs and any change aborts the issue.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, claims *Claims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, claims *Claims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, claims *Claims) error {
	if f == nil {
		return nil
	}
	return f(ctx, claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, *Claims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}

// RolePermissionsDecorator expands the permissions granted by the roles in
// the token. Roles that no longer exist grant nothing.
func RolePermissionsDecorator(roles Roles) ClaimsDecorator {
	return ClaimsDecoratorFunc(func(ctx context.Context, claims *Claims) error {
		if roles == nil || len(claims.Roles) == 0 {
			return nil
		}
		found, err := roles.FindByNames(ctx, claims.Roles...)
		if err != nil {
			return storeFailure(err, "failed to load role permissions")
		}
		for _, role := range found {
			for _, perm := range role.Permissions {
				claims.Permissions, _ = addToSet(claims.Permissions, perm)
			}
		}
		return nil
	})
}
