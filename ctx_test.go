package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerContext(t *testing.T) {
	ctx := context.Background()

	_, ok := CallerFromContext(ctx)
	assert.False(t, ok)

	caller := &Caller{ID: "user-1", Roles: []string{"admin"}, Permissions: []string{"users:create"}}
	ctx = WithCallerContext(ctx, caller)

	got, ok := CallerFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, caller, got)

	assert.True(t, HasRole(ctx, "admin"))
	assert.False(t, HasRole(ctx, "user"))
	assert.True(t, Can(ctx, "users:create"))
	assert.False(t, Can(ctx, "users:delete"))
}

func TestCallerContext_Nil(t *testing.T) {
	ctx := WithCallerContext(context.Background(), nil)

	_, ok := CallerFromContext(ctx)
	assert.False(t, ok)
	assert.False(t, HasRole(ctx, "admin"))
	assert.False(t, Can(ctx, "anything"))
}

func TestClaimsContext(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"},
		Email:            "u2@example.com",
		Roles:            []string{"editor"},
	}

	ctx := WithClaimsContext(context.Background(), claims)

	got, ok := GetClaims(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)

	caller, ok := CallerFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-2", caller.ID)
	assert.Equal(t, "u2@example.com", caller.Email)
	assert.True(t, HasRole(ctx, "editor"))
}

func TestContextKeysAreDistinct(t *testing.T) {
	ctx := context.WithValue(context.Background(), contextKey{"caller"}, &Caller{ID: "spoofed"})
	_, ok := CallerFromContext(ctx)
	assert.False(t, ok)
}
