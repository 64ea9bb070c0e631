package auth

import "context"

// Caller is the identity an access decision is made for. A nil Caller is
// an unauthenticated request and holds no roles or permissions.
type Caller struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// CallerFromClaims returns nil for nil claims
func CallerFromClaims(claims *Claims) *Caller {
	return claims.Caller()
}

func (c *Caller) roles() []string {
	if c == nil {
		return nil
	}
	return c.Roles
}

func (c *Caller) permissions() []string {
	if c == nil {
		return nil
	}
	return c.Permissions
}

// Authenticated reports whether the request carries an identity
func (c *Caller) Authenticated() bool {
	return c != nil && c.ID != ""
}

// Request is what guards evaluate. Operation keys the static requirement
// table, Route and Method key the policy store.
type Request struct {
	Operation string
	Route     string
	Method    string
	Caller    *Caller
}

// Guard allows a request by returning nil. Denials return
// ErrInsufficientRole or ErrInsufficientPermission, store failures a
// StoreUnavailable error.
type Guard interface {
	Allow(ctx context.Context, req Request) error
}

// GuardFunc adapts a function into a Guard.
type GuardFunc func(ctx context.Context, req Request) error

// Allow satisfies the Guard interface.
func (f GuardFunc) Allow(ctx context.Context, req Request) error {
	if f == nil {
		return nil
	}
	return f(ctx, req)
}

// Guards runs every guard in order and stops at the first denial
type Guards []Guard

// Allow satisfies the Guard interface.
func (g Guards) Allow(ctx context.Context, req Request) error {
	for _, guard := range g {
		if guard == nil {
			continue
		}
		if err := guard.Allow(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// RequireAnyRole allows callers holding at least one of roles. An empty
// list allows everyone.
func RequireAnyRole(roles ...string) Guard {
	return GuardFunc(func(_ context.Context, req Request) error {
		return checkRoles(roles, req.Caller)
	})
}

// RequireAnyPermission allows callers holding at least one of permissions.
func RequireAnyPermission(permissions ...string) Guard {
	return GuardFunc(func(_ context.Context, req Request) error {
		return checkPermissions(permissions, req.Caller)
	})
}

func checkRoles(required []string, caller *Caller) error {
	if len(required) == 0 || intersects(caller.roles(), required) {
		return nil
	}
	return ErrInsufficientRole
}

func checkPermissions(required []string, caller *Caller) error {
	if len(required) == 0 || intersects(caller.permissions(), required) {
		return nil
	}
	return ErrInsufficientPermission
}
