package auth

import "context"

var callerCtxKey = &contextKey{"caller"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithCallerContext sets the Caller in the given context
func WithCallerContext(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerCtxKey, caller)
}

// CallerFromContext finds the caller from the context.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	raw, ok := ctx.Value(callerCtxKey).(*Caller)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the Claims and the derived Caller in the given
// context
func WithClaimsContext(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsCtxKey, claims)
	return WithCallerContext(ctx, claims.Caller())
}

// GetClaims extracts the Claims from the standard context
func GetClaims(ctx context.Context) (*Claims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*Claims)
	return raw, ok && raw != nil
}

// Can is a convenience function to check a permission from the context
func Can(ctx context.Context, permission string) bool {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return false
	}
	return containsString(caller.Permissions, permission)
}

// HasRole checks a role from the context
func HasRole(ctx context.Context, role string) bool {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return false
	}
	return containsString(caller.Roles, role)
}
