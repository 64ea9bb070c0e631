// Command authctl administers an auth deployment: it creates the schema,
// manages accounts, roles and route policies, and evaluates access checks
// against the configured guards.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-rbac"
	"github.com/goliatone/go-auth-rbac/config"
	"github.com/goliatone/go-auth-rbac/redisstore"
)

const usage = `usage: authctl [-config file] [-debug] <command> [flags]

commands:
  migrate                                create tables and seed configured route policies
  register                               create an account and print its tokens
  login                                  print a token pair for valid credentials
  refresh                                exchange a refresh token for a new pair
  forgot-password                        send a password reset link
  reset-password                         set a password using a reset token
  change-password                        change the password of an account
  role assign|remove                     grant or revoke a role on an account
  permission assign|remove               grant or revoke a permission on an account
  roles list|create|update|delete        manage role definitions
  permissions list|create|update|delete  manage permission definitions
  policy list|get|set|delete             manage route policies
  check                                  evaluate a request against the configured guards
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("AUTH_CONFIG"), "path to the YAML configuration file")
	debug := fs.Bool("debug", false, "enable trace logging and print the effective configuration")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command", errors.CategoryBadInput)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, *debug)
	if err != nil {
		return err
	}
	defer a.Close()

	if *debug {
		fmt.Fprintln(out, print.MaybeHighlightJSON(redacted(cfg)))
	}

	return a.dispatch(ctx, fs.Arg(0), fs.Args()[1:], out)
}

type app struct {
	cfg       *config.Config
	logger    *glog.BaseLogger
	db        *bun.DB
	repos     auth.RepositoryManager
	policies  auth.PolicyStore
	closers   []func() error
	registry  *prometheus.Registry
	metrics   *auth.Metrics
	tokens    *auth.TokenService
	service   *auth.Service
	directory *auth.Directory
	engine    *auth.AccessEngine
}

func newApp(ctx context.Context, cfg *config.Config, debug bool) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: newLogger(debug || cfg.Logging.Level == "trace"),
	}

	if err := a.openDatabase(); err != nil {
		return nil, err
	}

	a.repos = auth.NewRepositoryManager(a.db)
	a.repos.MustValidate()

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		m, err := auth.NewMetrics(a.registry)
		if err != nil {
			return nil, err
		}
		a.metrics = m
	}

	if err := a.openPolicyStore(ctx); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.TokenConfig(), a.logger.GetLogger("auth:tokens"))
	if err != nil {
		return nil, err
	}
	if cfg.Access.ExpandRolePermissions {
		tokens.WithClaimsDecorator(auth.RolePermissionsDecorator(a.repos.Roles()))
	}
	a.tokens = tokens

	activityLogger := a.logger.GetLogger("auth:activity")
	sink := auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		activityLogger.Debug("activity", "event", event.EventType, "user_id", event.UserID, "actor", event.Actor.Type)
		return nil
	})

	a.service = auth.NewService(a.repos.Accounts(), tokens, cfg.ServiceConfig()).
		WithLogger(a.logger.GetLogger("auth:service")).
		WithHasher(auth.NewBcryptHasher(cfg.Password.Cost)).
		WithNotifier(auth.NewLogNotifier(a.logger.GetLogger("auth:notifier"))).
		WithActivitySink(sink).
		WithMetrics(a.metrics)

	a.directory = auth.NewDirectory(a.repos.Roles(), a.repos.Permissions(), a.policies).
		WithLogger(a.logger.GetLogger("auth:directory")).
		WithActivitySink(sink)

	guards, err := auth.BuildGuards(cfg.Strategy(), cfg.RequirementTable(), a.policies, cfg.PolicyGuardOptions())
	if err != nil {
		return nil, err
	}
	a.engine = auth.NewAccessEngine(guards, tokens.Validator(auth.TokenAccess)).
		WithLogger(a.logger.GetLogger("auth:access")).
		WithMetrics(a.metrics)

	return a, nil
}

func newLogger(trace bool) *glog.BaseLogger {
	if trace {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("authctl"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("authctl"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func (a *app) openDatabase() error {
	var (
		sqldb *sql.DB
		err   error
	)

	switch a.cfg.Database.Driver {
	case config.DriverPostgres:
		if sqldb, err = sql.Open("postgres", a.cfg.Database.DSN); err != nil {
			return err
		}
		a.db = bun.NewDB(sqldb, pgdialect.New())
	default:
		if sqldb, err = sql.Open(sqliteshim.ShimName, a.cfg.Database.DSN); err != nil {
			return err
		}
		sqldb.SetMaxOpenConns(1)
		a.db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	a.closers = append(a.closers, a.db.Close)
	return nil
}

func (a *app) openPolicyStore(ctx context.Context) error {
	var store auth.PolicyStore = a.repos.RoutePolicies()

	if a.cfg.Redis.Enabled {
		rs, err := redisstore.Connect(ctx, a.cfg.Redis.URL, a.cfg.Redis.Prefix)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rs.Close)
		store = rs
	}

	if a.cfg.PolicyCache.Enabled {
		store = auth.NewCachedPolicyStore(store, a.cfg.PolicyCache.Size, a.cfg.PolicyCache.TTL).
			WithMetrics(a.metrics)
	}

	a.policies = store
	return nil
}

func (a *app) Close() {
	if a.registry != nil {
		if families, err := a.registry.Gather(); err == nil {
			a.logger.GetLogger("metrics").Debug("collected metrics", "families", len(families))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.GetLogger("authctl").Warn("close error", "error", err)
		}
	}
}

// redacted returns a copy of cfg safe to print
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.Tokens.AccessSecret != "" {
		out.Tokens.AccessSecret = "********"
	}
	if out.Tokens.RefreshSecret != "" {
		out.Tokens.RefreshSecret = "********"
	}
	return out
}
