package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// HTTPMethods are the methods a route policy can be registered for
var HTTPMethods = []any{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// RoutePolicySeed is a policy loaded at startup
type RoutePolicySeed struct {
	Route       string   `yaml:"route" json:"route"`
	Method      string   `yaml:"method" json:"method"`
	Roles       []string `yaml:"roles" json:"roles"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

func (s RoutePolicySeed) Validate() error {
	method := NormalizeMethod(s.Method)
	return validation.Errors{
		"route":  validation.Validate(strings.TrimSpace(s.Route), validation.Required),
		"method": validation.Validate(method, validation.Required, validation.In(HTTPMethods...)),
	}.Filter()
}

// Directory manages role, permission and route policy definitions
type Directory struct {
	roles       Roles
	permissions Permissions
	policies    PolicyStore
	activity    ActivitySink
	logger      Logger
	now         func() time.Time
}

// NewDirectory accepts nil stores, the matching operations then fail
func NewDirectory(roles Roles, permissions Permissions, policies PolicyStore) *Directory {
	return &Directory{
		roles:       roles,
		permissions: permissions,
		policies:    policies,
		activity:    noopActivitySink{},
		logger:      defLogger{},
		now:         time.Now,
	}
}

func (d *Directory) WithLogger(logger Logger) *Directory {
	d.logger = normalizeLogger(logger)
	return d
}

func (d *Directory) WithActivitySink(sink ActivitySink) *Directory {
	d.activity = normalizeActivitySink(sink)
	return d
}

func (d *Directory) CreateRole(ctx context.Context, name string, permissions []string) (*Role, error) {
	if err := d.requireRoles(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 100)); err != nil {
		return nil, invalidInput(err, "invalid role name")
	}

	role, err := d.roles.Create(ctx, &Role{Name: name, Permissions: permissions})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrRoleExists
		}
		return nil, err
	}
	return role, nil
}

// UpdateRole replaces the name and permissions of the role
func (d *Directory) UpdateRole(ctx context.Context, id, name string, permissions []string) (*Role, error) {
	if err := d.requireRoles(); err != nil {
		return nil, err
	}
	role, err := d.roles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		role.Name = name
	}
	role.Permissions = NormalizeSet(permissions)

	updated, err := d.roles.Update(ctx, role)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrRoleExists
		}
		return nil, err
	}
	return updated, nil
}

func (d *Directory) DeleteRole(ctx context.Context, id string) error {
	if err := d.requireRoles(); err != nil {
		return err
	}
	return d.roles.Delete(ctx, id)
}

func (d *Directory) GetRole(ctx context.Context, id string) (*Role, error) {
	if err := d.requireRoles(); err != nil {
		return nil, err
	}
	return d.roles.FindByID(ctx, id)
}

func (d *Directory) ListRoles(ctx context.Context) ([]*Role, error) {
	if err := d.requireRoles(); err != nil {
		return nil, err
	}
	return d.roles.List(ctx)
}

func (d *Directory) CreatePermission(ctx context.Context, name, description string) (*Permission, error) {
	if err := d.requirePermissions(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 100)); err != nil {
		return nil, invalidInput(err, "invalid permission name")
	}

	permission, err := d.permissions.Create(ctx, &Permission{Name: name, Description: description})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrPermissionExists
		}
		return nil, err
	}
	return permission, nil
}

func (d *Directory) UpdatePermission(ctx context.Context, id, name, description string) (*Permission, error) {
	if err := d.requirePermissions(); err != nil {
		return nil, err
	}
	permission, err := d.permissions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		permission.Name = name
	}
	permission.Description = description

	updated, err := d.permissions.Update(ctx, permission)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrPermissionExists
		}
		return nil, err
	}
	return updated, nil
}

func (d *Directory) DeletePermission(ctx context.Context, id string) error {
	if err := d.requirePermissions(); err != nil {
		return err
	}
	return d.permissions.Delete(ctx, id)
}

func (d *Directory) GetPermission(ctx context.Context, id string) (*Permission, error) {
	if err := d.requirePermissions(); err != nil {
		return nil, err
	}
	return d.permissions.FindByID(ctx, id)
}

func (d *Directory) ListPermissions(ctx context.Context) ([]*Permission, error) {
	if err := d.requirePermissions(); err != nil {
		return nil, err
	}
	return d.permissions.List(ctx)
}

// SetRoutePolicy creates or replaces the policy of (route, method)
func (d *Directory) SetRoutePolicy(ctx context.Context, route, method string, roles, permissions []string) (*RoutePolicy, error) {
	if err := d.requirePolicies(); err != nil {
		return nil, err
	}
	seed := RoutePolicySeed{Route: route, Method: method, Roles: roles, Permissions: permissions}
	if err := seed.Validate(); err != nil {
		return nil, invalidInput(err, "invalid route policy")
	}

	policy, err := d.policies.Upsert(ctx, strings.TrimSpace(route), NormalizeMethod(method), roles, permissions)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, d.activity, d.logger, d.now(), ActivityEvent{
		EventType: ActivityEventRoutePolicyChanged,
		Actor:     actorFromContext(ctx),
		Metadata: map[string]any{
			"route":       policy.Route,
			"method":      policy.Method,
			"roles":       policy.RequiredRoles,
			"permissions": policy.RequiredPermissions,
		},
	})
	return policy, nil
}

// GetRoutePolicy returns ErrRoutePolicyNotFound for unregistered pairs
func (d *Directory) GetRoutePolicy(ctx context.Context, route, method string) (*RoutePolicy, error) {
	if err := d.requirePolicies(); err != nil {
		return nil, err
	}
	return d.policies.Get(ctx, strings.TrimSpace(route), NormalizeMethod(method))
}

func (d *Directory) DeleteRoutePolicy(ctx context.Context, route, method string) error {
	if err := d.requirePolicies(); err != nil {
		return err
	}
	if err := d.policies.Delete(ctx, strings.TrimSpace(route), NormalizeMethod(method)); err != nil {
		return err
	}
	recordActivity(ctx, d.activity, d.logger, d.now(), ActivityEvent{
		EventType: ActivityEventRoutePolicyDeleted,
		Actor:     actorFromContext(ctx),
		Metadata:  map[string]any{"route": route, "method": NormalizeMethod(method)},
	})
	return nil
}

func (d *Directory) ListRoutePolicies(ctx context.Context) ([]*RoutePolicy, error) {
	if err := d.requirePolicies(); err != nil {
		return nil, err
	}
	return d.policies.List(ctx)
}

// SeedRoutePolicies upserts every seed, stopping at the first failure
func (d *Directory) SeedRoutePolicies(ctx context.Context, seeds []RoutePolicySeed) error {
	for _, seed := range seeds {
		if _, err := d.SetRoutePolicy(ctx, seed.Route, seed.Method, seed.Roles, seed.Permissions); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to seed route policy").
				WithMetadata(map[string]any{"route": seed.Route, "method": seed.Method})
		}
	}
	d.logger.Info("route policies seeded", "count", len(seeds))
	return nil
}

func (d *Directory) requireRoles() error {
	if d.roles == nil {
		return errors.New("directory has no role store", errors.CategoryInternal)
	}
	return nil
}

func (d *Directory) requirePermissions() error {
	if d.permissions == nil {
		return errors.New("directory has no permission store", errors.CategoryInternal)
	}
	return nil
}

func (d *Directory) requirePolicies() error {
	if d.policies == nil {
		return errors.New("directory has no policy store", errors.CategoryInternal)
	}
	return nil
}

func actorFromContext(ctx context.Context) ActorRef {
	if caller, ok := CallerFromContext(ctx); ok {
		return userActor(caller.ID)
	}
	return ActorRef{Type: "system"}
}
