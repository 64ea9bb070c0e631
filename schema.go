package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// Models lists every table the package owns, in creation order
func Models() []any {
	return []any{
		(*Account)(nil),
		(*Role)(nil),
		(*Permission)(nil),
		(*RoutePolicy)(nil),
	}
}

// CreateSchema creates the tables and their unique constraints. It is safe
// to run on every start.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return storeFailure(err, "failed to create schema")
		}
	}
	return nil
}
