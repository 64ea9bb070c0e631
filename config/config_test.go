package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-rbac"
	"github.com/goliatone/go-auth-rbac/config"
)

const sampleConfig = `
tokens:
  access_secret: file-access
  refresh_secret: file-refresh
  issuer: auth-service
  access_ttl: 5m
  refresh_ttl: 48h
service:
  default_role: member
  minimum_age: 21
  frontend_url: https://app.example.com/
  reset_path: /account/reset
access:
  strategy: combined
  default_deny: true
  requirements:
    users.create:
      roles: [admin, admin]
      permissions: [users:create]
  policies:
    - route: /users
      method: post
      roles: [admin]
database:
  driver: postgres
  dsn: postgres://localhost/auth?sslmode=disable
policy_cache:
  enabled: true
  size: 64
  ttl: 30s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"AUTH_JWT_SECRET", "JWT_SECRET", "AUTH_JWT_REFRESH_SECRET", "JWT_REFRESH_SECRET",
		"AUTH_JWT_ISSUER", "AUTH_REFRESH_RELOAD_ACCOUNT", "AUTH_FRONTEND_URL", "FRONTEND_URL",
		"AUTH_DEFAULT_ROLE", "AUTH_ACCESS_STRATEGY", "AUTH_ACCESS_DEFAULT_DENY",
		"AUTH_DATABASE_DRIVER", "AUTH_DATABASE_DSN", "AUTH_REDIS_ENABLED", "AUTH_REDIS_URL",
		"AUTH_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "file-access", cfg.Tokens.AccessSecret)
	assert.Equal(t, 5*time.Minute, cfg.Tokens.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, auth.DefaultResetTTL, cfg.Tokens.ResetTTL)

	assert.Equal(t, auth.StrategyCombined, cfg.Strategy())
	assert.True(t, cfg.PolicyGuardOptions().DefaultDeny)
	assert.Equal(t, "https://app.example.com/account/reset", cfg.ResetURL())

	table := cfg.RequirementTable()
	assert.Equal(t, []string{"admin"}, table.Lookup("users.create").Roles)
	assert.Equal(t, []string{"users:create"}, table.Lookup("users.create").Permissions)

	require.Len(t, cfg.Access.Policies, 1)
	assert.Equal(t, "/users", cfg.Access.Policies[0].Route)

	svc := cfg.ServiceConfig()
	assert.Equal(t, "member", svc.DefaultRole)
	assert.Equal(t, 21, svc.MinimumAge)

	tokens := cfg.TokenConfig()
	assert.Equal(t, "auth-service", tokens.Issuer)
	assert.NoError(t, tokens.Validate())

	assert.True(t, cfg.PolicyCache.Enabled)
	assert.Equal(t, 64, cfg.PolicyCache.Size)
	assert.Equal(t, 30*time.Second, cfg.PolicyCache.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_JWT_SECRET", "env-access")
	t.Setenv("JWT_REFRESH_SECRET", "legacy-refresh")
	t.Setenv("AUTH_ACCESS_STRATEGY", "policy")
	t.Setenv("AUTH_ACCESS_DEFAULT_DENY", "false")
	t.Setenv("AUTH_DATABASE_DRIVER", "sqlite")
	t.Setenv("AUTH_DATABASE_DSN", "file::memory:")
	t.Setenv("AUTH_REFRESH_RELOAD_ACCOUNT", "true")
	t.Setenv("FRONTEND_URL", "https://legacy.example.com")

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-access", cfg.Tokens.AccessSecret)
	assert.Equal(t, "legacy-refresh", cfg.Tokens.RefreshSecret)
	assert.Equal(t, auth.StrategyPolicy, cfg.Strategy())
	assert.False(t, cfg.Access.DefaultDeny)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.True(t, cfg.ServiceConfig().RefreshReloadAccount)
	assert.Equal(t, "https://legacy.example.com/account/reset", cfg.ResetURL())
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_JWT_SECRET", "env-access")
	t.Setenv("AUTH_JWT_REFRESH_SECRET", "env-refresh")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, auth.StrategyStatic, cfg.Strategy())
	assert.Equal(t, auth.DefaultRole, cfg.Service.DefaultRole)
	assert.Equal(t, auth.DefaultMinimumAge, cfg.Service.MinimumAge)
	assert.Equal(t, "http://localhost:3000/reset-password", cfg.ResetURL())
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing secrets",
			body: "database:\n  driver: sqlite\n  dsn: x\n",
			want: "secret",
		},
		{
			name: "shared secret",
			body: "tokens:\n  access_secret: same\n  refresh_secret: same\n",
			want: "differ",
		},
		{
			name: "unknown strategy",
			body: "tokens:\n  access_secret: a\n  refresh_secret: b\naccess:\n  strategy: acl\n",
			want: "strategy",
		},
		{
			name: "unknown driver",
			body: "tokens:\n  access_secret: a\n  refresh_secret: b\ndatabase:\n  driver: mysql\n",
			want: "database.driver",
		},
		{
			name: "redis without url",
			body: "tokens:\n  access_secret: a\n  refresh_secret: b\nredis:\n  enabled: true\n  url: \"\"\n",
			want: "redis.url",
		},
		{
			name: "bad policy seed",
			body: "tokens:\n  access_secret: a\n  refresh_secret: b\naccess:\n  policies:\n    - route: /x\n      method: BREW\n",
			want: "access.policies[0]",
		},
		{
			name: "malformed yaml",
			body: "tokens: [",
			want: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
