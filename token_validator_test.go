package auth_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-rbac"
)

func TestTokenValidatorFunc(t *testing.T) {
	t.Run("nil func rejects", func(t *testing.T) {
		var fn auth.TokenValidatorFunc
		claims, err := fn.Validate("anything")
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})

	t.Run("delegates to func", func(t *testing.T) {
		fn := auth.TokenValidatorFunc(func(token string) (*auth.Claims, error) {
			return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: token}}, nil
		})
		claims, err := fn.Validate("user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID())
	})
}

func TestTokenValidator_UsedByAccessEngine(t *testing.T) {
	ts := newTokenService(t, newTestClock(fixedNow))
	token, err := ts.Issue(context.Background(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Roles:            []string{"admin"},
	}, auth.TokenAccess)
	require.NoError(t, err)

	engine := auth.NewAccessEngine(auth.Guards{auth.RequireAnyRole("admin")}, ts.Validator(auth.TokenAccess)).
		WithLogger(nopLogger{})

	claims, err := engine.AuthorizeToken(context.Background(), "Bearer "+token, auth.Request{Operation: "users.create"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
}
