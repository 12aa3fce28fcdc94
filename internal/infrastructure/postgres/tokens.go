package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-account-api/internal/domain"
)

type TokenRepository struct {
	db DBTX
}

func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, t *domain.VerificationToken) error {
	query :=
		`INSERT INTO verification_tokens (id, token, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, t.TokenID, t.Token, t.AccountID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("token collision: %w", domain.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	query :=
		`SELECT id, token, user_id, expires_at, created_at FROM verification_tokens
		 WHERE token = $1`

	t := &domain.VerificationToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(&t.TokenID, &t.Token, &t.AccountID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}
