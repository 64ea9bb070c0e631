package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-rbac"
)

func TestClaims_Accessors(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:       "user@example.com",
		Roles:       []string{"user", "editor"},
		Permissions: []string{"posts:write"},
	}

	assert.Equal(t, "user-123", claims.UserID())
	assert.True(t, claims.HasRole("editor"))
	assert.False(t, claims.HasRole("admin"))
	assert.True(t, claims.HasPermission("posts:write"))
	assert.False(t, claims.HasPermission("posts:delete"))
	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Hour)))
}

func TestClaims_ZeroTimes(t *testing.T) {
	claims := &auth.Claims{}
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}

func TestClaims_Caller(t *testing.T) {
	t.Run("nil claims have no caller", func(t *testing.T) {
		var claims *auth.Claims
		assert.Nil(t, claims.Caller())
		assert.Nil(t, auth.CallerFromClaims(nil))
	})

	t.Run("caller copies identity", func(t *testing.T) {
		claims := &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
			Email:            "a@example.com",
			Roles:            []string{"admin"},
			Permissions:      []string{"users:create"},
		}

		caller := claims.Caller()
		require.NotNil(t, caller)
		assert.Equal(t, "user-1", caller.ID)
		assert.Equal(t, "a@example.com", caller.Email)
		assert.Equal(t, []string{"admin"}, caller.Roles)
		assert.Equal(t, []string{"users:create"}, caller.Permissions)
		assert.True(t, caller.Authenticated())

		caller.Roles[0] = "changed"
		assert.Equal(t, "admin", claims.Roles[0])
	})

	t.Run("nil caller is not authenticated", func(t *testing.T) {
		var caller *auth.Caller
		assert.False(t, caller.Authenticated())
		assert.False(t, (&auth.Caller{}).Authenticated())
	})
}

func TestClaimsFromAccount(t *testing.T) {
	account := &auth.Account{
		ID:          uuid.New(),
		Email:       "user@example.com",
		Roles:       []string{"user"},
		Permissions: []string{"profile:read"},
	}

	claims := auth.ClaimsFromAccount(account)
	assert.Equal(t, account.ID.String(), claims.UserID())
	assert.Equal(t, account.Email, claims.Email)
	assert.Equal(t, account.Roles, claims.Roles)
	assert.Equal(t, account.Permissions, claims.Permissions)
	assert.Nil(t, claims.ExpiresAt)

	account.Roles[0] = "admin"
	assert.Equal(t, "user", claims.Roles[0])
}
