package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountsRepository is the bun backed Accounts store
type AccountsRepository struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var _ Accounts = (*AccountsRepository)(nil)

func NewAccountsRepository(db *bun.DB) *AccountsRepository {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &AccountsRepository{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (r *AccountsRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.FindByEmailTx(ctx, r.db, email)
}

func (r *AccountsRepository) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, accountLookupError(err, "email", email)
	}
	return record, nil
}

func (r *AccountsRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAccountNotFound
	}
	record, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, accountLookupError(err, "id", id)
	}
	return record, nil
}

func (r *AccountsRepository) Create(ctx context.Context, account *Account) (*Account, error) {
	return r.CreateTx(ctx, r.db, account)
}

// CreateTx inserts account, mapping unique violations on email to
// ErrDuplicateRecord.
func (r *AccountsRepository) CreateTx(ctx context.Context, tx bun.IDB, account *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(account, r.now())

	record, err := r.Repository.CreateTx(ctx, tx, account, criteria...)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, storeFailure(err, "failed to create account")
	}
	return record, nil
}

// Save writes every column of account. Concurrent saves are last write wins.
func (r *AccountsRepository) Save(ctx context.Context, account *Account) (*Account, error) {
	return r.SaveTx(ctx, r.db, account)
}

func (r *AccountsRepository) SaveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	now := r.now()
	account.UpdatedAt = &now
	account.Email = NormalizeEmail(account.Email)

	res, err := tx.NewUpdate().
		Model(account).
		WherePK().
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, storeFailure(err, "failed to save account")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func prepareAccountDefaults(account *Account, now time.Time) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Email = NormalizeEmail(account.Email)
	if account.Roles == nil {
		account.Roles = []string{}
	}
	if account.Permissions == nil {
		account.Permissions = []string{}
	}
	if account.CreatedAt == nil {
		account.CreatedAt = &now
	}
	if account.UpdatedAt == nil {
		account.UpdatedAt = &now
	}
}

func accountLookupError(err error, field, value string) error {
	if isNotFound(err) {
		return ErrAccountNotFound
	}
	return storeFailure(err, "failed to load account by "+field).
		WithMetadata(map[string]any{field: value})
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) || errors.IsNotFound(err)
}
