package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-account-api/internal/domain"
)

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, password_hash, first_name, last_name, verified, account_created, account_updated`

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	query :=
		`INSERT INTO accounts (id, email, password_hash, first_name, last_name, verified, account_created, account_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		a.AccountID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Verified, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", a.Email, domain.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, accountID))
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *AccountRepository) scanOne(row *sql.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.AccountID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.Verified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Save persists the mutable fields of an existing account.
func (r *AccountRepository) Save(ctx context.Context, a *domain.Account) error {
	query :=
		`UPDATE accounts
		 SET password_hash = $2, first_name = $3, last_name = $4, verified = $5, account_updated = $6
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, a.AccountID, a.PasswordHash, a.FirstName, a.LastName, a.Verified, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", a.AccountID, domain.ErrNotFound)
	}
	return nil
}
