package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RolesRepository is the bun backed Roles store
type RolesRepository struct {
	repo repository.Repository[*Role]
	db   *bun.DB
	now  func() time.Time
}

var _ Roles = (*RolesRepository)(nil)

func NewRolesRepository(db *bun.DB) *RolesRepository {
	return &RolesRepository{
		repo: repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
			NewRecord: func() *Role { return &Role{} },
			GetID: func(r *Role) uuid.UUID {
				if r == nil {
					return uuid.Nil
				}
				return r.ID
			},
			SetID: func(r *Role, id uuid.UUID) {
				if r != nil {
					r.ID = id
				}
			},
			GetIdentifier: func() string {
				return "name"
			},
		}),
		db:  db,
		now: time.Now,
	}
}

func (r *RolesRepository) Create(ctx context.Context, role *Role) (*Role, error) {
	now := r.now()
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.Permissions = NormalizeSet(role.Permissions)
	role.CreatedAt, role.UpdatedAt = &now, &now

	record, err := r.repo.CreateTx(ctx, r.db, role)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, storeFailure(err, "failed to create role")
	}
	return record, nil
}

func (r *RolesRepository) Update(ctx context.Context, role *Role) (*Role, error) {
	now := r.now()
	role.UpdatedAt = &now
	role.Permissions = NormalizeSet(role.Permissions)

	res, err := r.db.NewUpdate().
		Model(role).
		Column("name", "permissions", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, storeFailure(err, "failed to update role")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrRoleNotFound
	}
	return r.FindByID(ctx, role.ID.String())
}

// Delete removes the role definition. Accounts keep the role name and it
// simply stops granting permissions.
func (r *RolesRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrRoleNotFound
	}
	res, err := r.db.NewDelete().
		Model((*Role)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "failed to delete role")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *RolesRepository) FindByID(ctx context.Context, id string) (*Role, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRoleNotFound
	}
	record := &Role{}
	if err := r.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx); err != nil {
		if isNotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, storeFailure(err, "failed to load role")
	}
	return record, nil
}

// FindByNames returns the roles that exist among names, unknown names are
// skipped.
func (r *RolesRepository) FindByNames(ctx context.Context, names ...string) ([]*Role, error) {
	out := []*Role{}
	if len(names) == 0 {
		return out, nil
	}
	err := r.db.NewSelect().
		Model(&out).
		Where("?TableAlias.name IN (?)", bun.In(names)).
		Order("name ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, storeFailure(err, "failed to load roles")
	}
	return out, nil
}

func (r *RolesRepository) List(ctx context.Context) ([]*Role, error) {
	out := []*Role{}
	if err := r.db.NewSelect().Model(&out).Order("name ASC").Scan(ctx); err != nil && !isNotFound(err) {
		return nil, storeFailure(err, "failed to list roles")
	}
	return out, nil
}

// PermissionsRepository is the bun backed Permissions store
type PermissionsRepository struct {
	repo repository.Repository[*Permission]
	db   *bun.DB
	now  func() time.Time
}

var _ Permissions = (*PermissionsRepository)(nil)

func NewPermissionsRepository(db *bun.DB) *PermissionsRepository {
	return &PermissionsRepository{
		repo: repository.NewRepository[*Permission](db, repository.ModelHandlers[*Permission]{
			NewRecord: func() *Permission { return &Permission{} },
			GetID: func(p *Permission) uuid.UUID {
				if p == nil {
					return uuid.Nil
				}
				return p.ID
			},
			SetID: func(p *Permission, id uuid.UUID) {
				if p != nil {
					p.ID = id
				}
			},
			GetIdentifier: func() string {
				return "name"
			},
		}),
		db:  db,
		now: time.Now,
	}
}

func (r *PermissionsRepository) Create(ctx context.Context, permission *Permission) (*Permission, error) {
	now := r.now()
	if permission.ID == uuid.Nil {
		permission.ID = uuid.New()
	}
	permission.CreatedAt, permission.UpdatedAt = &now, &now

	record, err := r.repo.CreateTx(ctx, r.db, permission)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, storeFailure(err, "failed to create permission")
	}
	return record, nil
}

func (r *PermissionsRepository) Update(ctx context.Context, permission *Permission) (*Permission, error) {
	now := r.now()
	permission.UpdatedAt = &now

	res, err := r.db.NewUpdate().
		Model(permission).
		Column("name", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, storeFailure(err, "failed to update permission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrPermissionNotFound
	}
	return r.FindByID(ctx, permission.ID.String())
}

func (r *PermissionsRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrPermissionNotFound
	}
	res, err := r.db.NewDelete().
		Model((*Permission)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "failed to delete permission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

func (r *PermissionsRepository) FindByID(ctx context.Context, id string) (*Permission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPermissionNotFound
	}
	record := &Permission{}
	if err := r.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx); err != nil {
		if isNotFound(err) {
			return nil, ErrPermissionNotFound
		}
		return nil, storeFailure(err, "failed to load permission")
	}
	return record, nil
}

func (r *PermissionsRepository) List(ctx context.Context) ([]*Permission, error) {
	out := []*Permission{}
	if err := r.db.NewSelect().Model(&out).Order("name ASC").Scan(ctx); err != nil && !isNotFound(err) {
		return nil, storeFailure(err, "failed to list permissions")
	}
	return out, nil
}
