package auth

import "context"

// Requirements declares the roles and permissions an operation needs.
// Within each list any entry is enough.
type Requirements struct {
	Roles       []string `yaml:"roles" json:"roles,omitempty"`
	Permissions []string `yaml:"permissions" json:"permissions,omitempty"`
}

// Empty reports whether the requirements impose nothing
func (r Requirements) Empty() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// RequirementTable maps operation names to their static requirements.
// Operations not in the table have no requirements.
type RequirementTable map[string]Requirements

// Lookup returns the requirements for operation
func (t RequirementTable) Lookup(operation string) Requirements {
	if t == nil {
		return Requirements{}
	}
	return t[operation]
}

// Set registers requirements for operation and returns the table
func (t RequirementTable) Set(operation string, req Requirements) RequirementTable {
	if t == nil {
		t = RequirementTable{}
	}
	t[operation] = Requirements{
		Roles:       NormalizeSet(req.Roles),
		Permissions: NormalizeSet(req.Permissions),
	}
	return t
}

// StaticRoleGuard checks the roles the table declares for req.Operation
func StaticRoleGuard(table RequirementTable) Guard {
	return GuardFunc(func(_ context.Context, req Request) error {
		return checkRoles(table.Lookup(req.Operation).Roles, req.Caller)
	})
}

// StaticPermissionGuard checks the permissions the table declares for
// req.Operation
func StaticPermissionGuard(table RequirementTable) Guard {
	return GuardFunc(func(_ context.Context, req Request) error {
		return checkPermissions(table.Lookup(req.Operation).Permissions, req.Caller)
	})
}
