// Package config loads the settings of an auth deployment from a YAML file
// and the environment, and converts them into the constructor inputs of the
// auth package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	auth "github.com/goliatone/go-auth-rbac"
)

// Config is the root of the configuration file
type Config struct {
	Tokens      TokensConfig   `yaml:"tokens"`
	Service     ServiceConfig  `yaml:"service"`
	Password    PasswordConfig `yaml:"password"`
	Access      AccessConfig   `yaml:"access"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	PolicyCache CacheConfig    `yaml:"policy_cache"`
	Logging     LoggingConfig  `yaml:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

type TokensConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	Issuer        string        `yaml:"issuer"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	ResetTTL      time.Duration `yaml:"reset_ttl"`
	// RefreshReloadAccount re-reads roles from the store on refresh
	RefreshReloadAccount bool `yaml:"refresh_reload_account"`
}

type ServiceConfig struct {
	DefaultRole string `yaml:"default_role"`
	MinimumAge  int    `yaml:"minimum_age"`
	FrontendURL string `yaml:"frontend_url"`
	ResetPath   string `yaml:"reset_path"`
	UseHashid   bool   `yaml:"use_hashid"`
}

type PasswordConfig struct {
	Cost int `yaml:"cost"`
}

type AccessConfig struct {
	Strategy     string                 `yaml:"strategy"`
	DefaultDeny  bool                   `yaml:"default_deny"`
	Requirements auth.RequirementTable  `yaml:"requirements"`
	Policies     []auth.RoutePolicySeed `yaml:"policies"`
	// ExpandRolePermissions adds the permissions of each role to tokens
	ExpandRolePermissions bool `yaml:"expand_role_permissions"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Prefix  string `yaml:"prefix"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	// Level "trace" enables trace output, anything else keeps the default
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "reading config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "parsing config file").
				WithTextCode(auth.TextCodeInvalidConfig).
				WithMetadata(map[string]any{"path": path})
		}
	}

	applyEnvOverrides(cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built in configuration. Secrets are left empty.
func Default() *Config {
	return &Config{
		Tokens: TokensConfig{
			AccessTTL:  auth.DefaultAccessTTL,
			RefreshTTL: auth.DefaultRefreshTTL,
			ResetTTL:   auth.DefaultResetTTL,
		},
		Service: ServiceConfig{
			DefaultRole: auth.DefaultRole,
			MinimumAge:  auth.DefaultMinimumAge,
			FrontendURL: "http://localhost:3000",
			ResetPath:   "/reset-password",
		},
		Password: PasswordConfig{
			Cost: auth.DefaultPasswordCost,
		},
		Access: AccessConfig{
			Strategy:     string(auth.StrategyStatic),
			Requirements: auth.RequirementTable{},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "file:auth.db?cache=shared",
		},
		Redis: RedisConfig{
			URL:    "redis://localhost:6379/0",
			Prefix: "auth:",
		},
		PolicyCache: CacheConfig{
			Size: auth.DefaultPolicyCacheSize,
			TTL:  time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides reads AUTH_* variables. JWT_SECRET, JWT_REFRESH_SECRET
// and FRONTEND_URL are honoured when the AUTH_ form is not set.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	str := func(dst *string, names ...string) {
		for _, name := range names {
			if v := getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}
	boolean := func(dst *bool, name string) {
		if v, err := strconv.ParseBool(getenv(name)); err == nil {
			*dst = v
		}
	}

	// Tokens
	str(&cfg.Tokens.AccessSecret, "AUTH_JWT_SECRET", "JWT_SECRET")
	str(&cfg.Tokens.RefreshSecret, "AUTH_JWT_REFRESH_SECRET", "JWT_REFRESH_SECRET")
	str(&cfg.Tokens.Issuer, "AUTH_JWT_ISSUER")
	boolean(&cfg.Tokens.RefreshReloadAccount, "AUTH_REFRESH_RELOAD_ACCOUNT")

	// Service
	str(&cfg.Service.FrontendURL, "AUTH_FRONTEND_URL", "FRONTEND_URL")
	str(&cfg.Service.DefaultRole, "AUTH_DEFAULT_ROLE")

	// Access
	str(&cfg.Access.Strategy, "AUTH_ACCESS_STRATEGY")
	boolean(&cfg.Access.DefaultDeny, "AUTH_ACCESS_DEFAULT_DENY")

	// Database
	str(&cfg.Database.Driver, "AUTH_DATABASE_DRIVER")
	str(&cfg.Database.DSN, "AUTH_DATABASE_DSN")

	// Redis
	boolean(&cfg.Redis.Enabled, "AUTH_REDIS_ENABLED")
	str(&cfg.Redis.URL, "AUTH_REDIS_URL")

	// Logging
	str(&cfg.Logging.Level, "AUTH_LOG_LEVEL")
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	var problems []string

	if err := c.TokenConfig().Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if _, err := auth.ParseStrategy(c.Access.Strategy); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Service.MinimumAge < 0 {
		problems = append(problems, "service.minimum_age must not be negative")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		problems = append(problems, fmt.Sprintf("database.driver must be %q or %q", DriverSQLite, DriverPostgres))
	}

	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		problems = append(problems, "redis.url is required when redis is enabled")
	}

	for i, seed := range c.Access.Policies {
		if err := seed.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("access.policies[%d]: %v", i, err))
		}
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.New("invalid configuration: "+strings.Join(problems, "; "), errors.CategoryValidation).
		WithTextCode(auth.TextCodeInvalidConfig).
		WithMetadata(map[string]any{"problems": problems})
}

// TokenConfig converts the tokens section
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  c.Tokens.AccessSecret,
		RefreshSecret: c.Tokens.RefreshSecret,
		Issuer:        c.Tokens.Issuer,
		AccessTTL:     c.Tokens.AccessTTL,
		RefreshTTL:    c.Tokens.RefreshTTL,
		ResetTTL:      c.Tokens.ResetTTL,
	}
}

// ServiceConfig converts the service section
func (c *Config) ServiceConfig() auth.ServiceConfig {
	return auth.ServiceConfig{
		DefaultRole:          c.Service.DefaultRole,
		MinimumAge:           c.Service.MinimumAge,
		ResetURL:             c.ResetURL(),
		UseHashid:            c.Service.UseHashid,
		RefreshReloadAccount: c.Tokens.RefreshReloadAccount,
	}
}

// ResetURL joins the frontend URL and the reset path
func (c *Config) ResetURL() string {
	return strings.TrimRight(c.Service.FrontendURL, "/") + "/" + strings.TrimLeft(c.Service.ResetPath, "/")
}

// Strategy returns the parsed access strategy, Validate guarantees it parses
func (c *Config) Strategy() auth.Strategy {
	s, _ := auth.ParseStrategy(c.Access.Strategy)
	return s
}

func (c *Config) PolicyGuardOptions() auth.PolicyGuardOptions {
	return auth.PolicyGuardOptions{DefaultDeny: c.Access.DefaultDeny}
}

// RequirementTable returns a normalized copy of the static requirements
func (c *Config) RequirementTable() auth.RequirementTable {
	table := auth.RequirementTable{}
	for op, req := range c.Access.Requirements {
		table.Set(op, req)
	}
	return table
}
