package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRole is attached to every account created through Register
const DefaultRole = "user"

// Account is the persisted credential record
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	DateOfBirth   time.Time  `bun:"date_of_birth,notnull" json:"date_of_birth,omitempty"`
	Roles         []string   `bun:"roles,type:jsonb" json:"roles"`
	Permissions   []string   `bun:"permissions,type:jsonb" json:"permissions"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasRole reports whether the account holds role
func (a *Account) HasRole(role string) bool {
	return containsString(a.Roles, role)
}

// HasPermission reports whether the account holds permission
func (a *Account) HasPermission(permission string) bool {
	return containsString(a.Permissions, permission)
}

// AddRole appends role if missing. It returns false when the account
// already had it.
func (a *Account) AddRole(role string) bool {
	var changed bool
	a.Roles, changed = addToSet(a.Roles, role)
	return changed
}

// RemoveRole drops role, preserving the order of the remaining entries.
func (a *Account) RemoveRole(role string) bool {
	var changed bool
	a.Roles, changed = removeFromSet(a.Roles, role)
	return changed
}

func (a *Account) AddPermission(permission string) bool {
	var changed bool
	a.Permissions, changed = addToSet(a.Permissions, permission)
	return changed
}

func (a *Account) RemovePermission(permission string) bool {
	var changed bool
	a.Permissions, changed = removeFromSet(a.Permissions, permission)
	return changed
}

// Role groups permissions under a unique name. Accounts reference roles by
// name only, so deleting a role never touches accounts.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	Permissions   []string   `bun:"permissions,type:jsonb" json:"permissions"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Permission is a named capability
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:prm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RoutePolicy lists the roles and permissions required to reach a
// (route, method) pair. Empty lists impose no requirement.
type RoutePolicy struct {
	bun.BaseModel       `bun:"table:route_policies,alias:rp"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Route               string     `bun:"route,notnull,unique:route_method" json:"route"`
	Method              string     `bun:"method,notnull,unique:route_method" json:"method"`
	RequiredRoles       []string   `bun:"required_roles,type:jsonb" json:"required_roles"`
	RequiredPermissions []string   `bun:"required_permissions,type:jsonb" json:"required_permissions"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Clone returns a deep copy so cached policies can not be mutated by callers
func (p *RoutePolicy) Clone() *RoutePolicy {
	if p == nil {
		return nil
	}
	out := *p
	out.RequiredRoles = cloneStrings(p.RequiredRoles)
	out.RequiredPermissions = cloneStrings(p.RequiredPermissions)
	return &out
}

// NormalizeEmail trims and lowercases email, it is applied to every write
// and every lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeMethod makes HTTP methods case insensitive
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// NormalizeSet trims entries, drops empties and duplicates, keeps order.
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out, _ = addToSet(out, v)
	}
	return out
}

func containsString(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func addToSet(set []string, value string) ([]string, bool) {
	if containsString(set, value) {
		return set, false
	}
	return append(set, value), true
}

func removeFromSet(set []string, value string) ([]string, bool) {
	idx := -1
	for i, v := range set {
		if v == value {
			idx = i
			break
		}
	}
	if idx < 0 {
		return set, false
	}
	out := make([]string, 0, len(set)-1)
	out = append(out, set[:idx]...)
	out = append(out, set[idx+1:]...)
	return out, true
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// intersects reports whether a and b share at least one entry
func intersects(a, b []string) bool {
	for _, v := range a {
		if containsString(b, v) {
			return true
		}
	}
	return false
}
