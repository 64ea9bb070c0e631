package auth_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-rbac"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    auth.Strategy
		wantErr bool
	}{
		{in: "", want: auth.StrategyStatic},
		{in: "static", want: auth.StrategyStatic},
		{in: " Policy ", want: auth.StrategyPolicy},
		{in: "COMBINED", want: auth.StrategyCombined},
		{in: "acl", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := auth.ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildGuards(t *testing.T) {
	table := auth.RequirementTable{}.Set("users.create", auth.Requirements{Roles: []string{"admin"}})
	store := auth.NewMemoryPolicyStore()

	guards, err := auth.BuildGuards(auth.StrategyStatic, table, nil, auth.PolicyGuardOptions{})
	require.NoError(t, err)
	assert.Len(t, guards, 2)

	guards, err = auth.BuildGuards(auth.StrategyPolicy, nil, store, auth.PolicyGuardOptions{})
	require.NoError(t, err)
	assert.Len(t, guards, 2)

	guards, err = auth.BuildGuards(auth.StrategyCombined, table, store, auth.PolicyGuardOptions{})
	require.NoError(t, err)
	assert.Len(t, guards, 4)

	_, err = auth.BuildGuards(auth.StrategyPolicy, table, nil, auth.PolicyGuardOptions{})
	assert.Error(t, err)

	_, err = auth.BuildGuards(auth.Strategy("unknown"), table, store, auth.PolicyGuardOptions{})
	assert.Error(t, err)
}

func TestAccessEngine_Combined(t *testing.T) {
	ctx := context.Background()
	table := auth.RequirementTable{}.Set("users.create", auth.Requirements{Permissions: []string{"users:create"}})
	store := auth.NewMemoryPolicyStore()
	_, err := store.Upsert(ctx, "/users", "POST", []string{"admin"}, nil)
	require.NoError(t, err)

	guards, err := auth.BuildGuards(auth.StrategyCombined, table, store, auth.PolicyGuardOptions{})
	require.NoError(t, err)
	engine := auth.NewAccessEngine(guards, nil).WithLogger(nopLogger{})

	req := auth.Request{Operation: "users.create", Route: "/users", Method: "POST"}

	req.Caller = &auth.Caller{ID: "1", Roles: []string{"admin"}, Permissions: []string{"users:create"}}
	assert.NoError(t, engine.Authorize(ctx, req))

	// static requirement checked before the route policy
	req.Caller = &auth.Caller{ID: "2", Roles: []string{"user"}}
	assert.ErrorIs(t, engine.Authorize(ctx, req), auth.ErrInsufficientPermission)

	req.Caller = &auth.Caller{ID: "3", Roles: []string{"user"}, Permissions: []string{"users:create"}}
	assert.ErrorIs(t, engine.Authorize(ctx, req), auth.ErrInsufficientRole)
}

func TestAccessEngine_CallerFromContext(t *testing.T) {
	engine := auth.NewAccessEngine(auth.Guards{auth.RequireAnyRole("admin")}, nil).WithLogger(nopLogger{})

	ctx := auth.WithCallerContext(context.Background(), &auth.Caller{ID: "1", Roles: []string{"admin"}})
	assert.NoError(t, engine.Authorize(ctx, auth.Request{Operation: "users.create"}))

	// an explicit caller takes precedence
	err := engine.Authorize(ctx, auth.Request{Operation: "users.create", Caller: &auth.Caller{ID: "2"}})
	assert.ErrorIs(t, err, auth.ErrInsufficientRole)
}

func TestAccessEngine_AuthorizeToken(t *testing.T) {
	ctx := context.Background()
	ts := newTokenService(t, newTestClock(fixedNow))
	engine := auth.NewAccessEngine(auth.Guards{auth.RequireAnyRole("admin")}, ts.Validator(auth.TokenAccess)).
		WithLogger(nopLogger{})

	issue := func(roles ...string) string {
		token, err := ts.Issue(ctx, &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
			Roles:            roles,
		}, auth.TokenAccess)
		require.NoError(t, err)
		return token
	}

	t.Run("valid token with role", func(t *testing.T) {
		claims, err := engine.AuthorizeToken(ctx, issue("admin"), auth.Request{Operation: "users.create"})
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID())
	})

	t.Run("bearer prefix", func(t *testing.T) {
		_, err := engine.AuthorizeToken(ctx, "Bearer "+issue("admin"), auth.Request{Operation: "users.create"})
		assert.NoError(t, err)
	})

	t.Run("valid token without role", func(t *testing.T) {
		claims, err := engine.AuthorizeToken(ctx, issue("user"), auth.Request{Operation: "users.create"})
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, auth.ErrInsufficientRole)
	})

	t.Run("empty token is anonymous", func(t *testing.T) {
		_, err := engine.AuthorizeToken(ctx, "", auth.Request{Operation: "users.create"})
		assert.ErrorIs(t, err, auth.ErrInsufficientRole)

		open := auth.NewAccessEngine(auth.Guards{auth.RequireAnyRole()}, nil).WithLogger(nopLogger{})
		_, err = open.AuthorizeToken(ctx, "", auth.Request{Operation: "health"})
		assert.NoError(t, err)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := engine.AuthorizeToken(ctx, "garbage", auth.Request{Operation: "users.create"})
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		refresh, err := ts.Issue(ctx, &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
			Roles:            []string{"admin"},
		}, auth.TokenRefresh)
		require.NoError(t, err)

		_, err = engine.AuthorizeToken(ctx, refresh, auth.Request{Operation: "users.create"})
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})

	t.Run("empty token ignores caller in context", func(t *testing.T) {
		withCaller := auth.WithCallerContext(ctx, &auth.Caller{ID: "admin-1", Roles: []string{"admin"}})

		assert.NoError(t, engine.Authorize(withCaller, auth.Request{Operation: "users.create"}))

		_, err := engine.AuthorizeToken(withCaller, "", auth.Request{Operation: "users.create"})
		assert.ErrorIs(t, err, auth.ErrInsufficientRole)
	})

	t.Run("reset token is not an access token", func(t *testing.T) {
		open := auth.NewAccessEngine(auth.Guards{auth.RequireAnyRole()}, ts.Validator(auth.TokenAccess)).
			WithLogger(nopLogger{})

		reset, err := ts.IssueReset(ctx, &auth.Account{ID: uuid.New(), Email: "user@example.com"})
		require.NoError(t, err)

		claims, err := open.AuthorizeToken(ctx, reset, auth.Request{Operation: "health"})
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})

	t.Run("missing validator", func(t *testing.T) {
		bare := auth.NewAccessEngine(auth.Guards{}, nil).WithLogger(nopLogger{})
		_, err := bare.AuthorizeToken(ctx, "some-token", auth.Request{})
		assert.Error(t, err)
	})
}

func TestAccessEngine_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := auth.NewMetrics(registry)
	require.NoError(t, err)

	engine := auth.NewAccessEngine(auth.Guards{auth.RequireAnyRole("admin")}, nil).
		WithLogger(nopLogger{}).
		WithMetrics(metrics)

	ctx := context.Background()
	require.NoError(t, engine.Authorize(ctx, auth.Request{Caller: &auth.Caller{ID: "1", Roles: []string{"admin"}}}))
	require.Error(t, engine.Authorize(ctx, auth.Request{Caller: &auth.Caller{ID: "2", Roles: []string{"user"}}}))
	require.Error(t, engine.Authorize(ctx, auth.Request{}))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("allow", "")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("deny", auth.TextCodeInsufficientRole)))
}
