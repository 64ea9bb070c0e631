package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoutePoliciesRepository is the bun backed PolicyStore
type RoutePoliciesRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ PolicyStore = (*RoutePoliciesRepository)(nil)

func NewRoutePoliciesRepository(db *bun.DB) *RoutePoliciesRepository {
	return &RoutePoliciesRepository{db: db, now: time.Now}
}

func (r *RoutePoliciesRepository) Get(ctx context.Context, route, method string) (*RoutePolicy, error) {
	return r.GetTx(ctx, r.db, route, method)
}

func (r *RoutePoliciesRepository) GetTx(ctx context.Context, tx bun.IDB, route, method string) (*RoutePolicy, error) {
	record := &RoutePolicy{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.route = ? AND ?TableAlias.method = ?", route, NormalizeMethod(method)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoutePolicyNotFound
		}
		return nil, storeFailure(err, "failed to load route policy").
			WithMetadata(map[string]any{"route": route, "method": method})
	}
	return record, nil
}

// Upsert relies on the (route, method) unique constraint, an existing row
// keeps its id and created_at.
func (r *RoutePoliciesRepository) Upsert(ctx context.Context, route, method string, roles, permissions []string) (*RoutePolicy, error) {
	now := r.now()
	record := &RoutePolicy{
		ID:                  uuid.New(),
		Route:               route,
		Method:              NormalizeMethod(method),
		RequiredRoles:       NormalizeSet(roles),
		RequiredPermissions: NormalizeSet(permissions),
		CreatedAt:           &now,
		UpdatedAt:           &now,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (route, method) DO UPDATE").
		Set("required_roles = EXCLUDED.required_roles").
		Set("required_permissions = EXCLUDED.required_permissions").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to upsert route policy").
			WithMetadata(map[string]any{"route": route, "method": method})
	}

	return r.Get(ctx, route, method)
}

func (r *RoutePoliciesRepository) Delete(ctx context.Context, route, method string) error {
	_, err := r.db.NewDelete().
		Model((*RoutePolicy)(nil)).
		Where("route = ? AND method = ?", route, NormalizeMethod(method)).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "failed to delete route policy")
	}
	return nil
}

func (r *RoutePoliciesRepository) List(ctx context.Context) ([]*RoutePolicy, error) {
	out := []*RoutePolicy{}
	err := r.db.NewSelect().
		Model(&out).
		Order("route ASC", "method ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, storeFailure(err, "failed to list route policies")
	}
	return out, nil
}
