package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() *AccountsRepository
	Roles() *RolesRepository
	Permissions() *PermissionsRepository
	RoutePolicies() *RoutePoliciesRepository
}

type mngr struct {
	db            *bun.DB
	accounts      *AccountsRepository
	roles         *RolesRepository
	permissions   *PermissionsRepository
	routePolicies *RoutePoliciesRepository
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		accounts:      NewAccountsRepository(db),
		roles:         NewRolesRepository(db),
		permissions:   NewPermissionsRepository(db),
		routePolicies: NewRoutePoliciesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager needs a database")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.roles == nil || m.permissions == nil {
		return errors.New("repository roles and permissions should be initialized")
	}

	if m.routePolicies == nil {
		return errors.New("repository routePolicies should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() *AccountsRepository {
	return m.accounts
}

func (m mngr) Roles() *RolesRepository {
	return m.roles
}

func (m mngr) Permissions() *PermissionsRepository {
	return m.permissions
}

func (m mngr) RoutePolicies() *RoutePoliciesRepository {
	return m.routePolicies
}
