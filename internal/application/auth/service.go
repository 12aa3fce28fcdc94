// Package auth implements the request gates that run before any account
// operation: credential authentication and the verified-account check.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-account-api/internal/domain"
	"github.com/rs/zerolog"
)

// Service resolves Basic-Auth credentials to an account.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)
}

type accountFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
}

type secretVerifier interface {
	Verify(plaintext, digest string) bool
}

type service struct {
	accounts accountFinder
	codec    secretVerifier
	log      *zerolog.Logger
}

type ServiceDeps struct {
	AccountRepo accountFinder
	Codec       secretVerifier
	Logger      *zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	log := deps.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &service{accounts: deps.AccountRepo, codec: deps.Codec, log: log}
}

// Authenticate never tells an unknown email apart from a wrong password.
func (s *service) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("credentials required: %w", domain.ErrUnauthorized)
	}
	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		s.log.Error().Err(err).Msg("authenticate: account lookup failed")
		return nil, fmt.Errorf("authenticate: %w", domain.ErrInternal)
	}
	if !s.codec.Verify(password, a.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return a, nil
}

// RequireVerified admits only accounts whose email has been verified.
func RequireVerified(a *domain.Account) error {
	if a == nil {
		return fmt.Errorf("no authenticated account: %w", domain.ErrUnauthorized)
	}
	if !a.Verified {
		return fmt.Errorf("account is not verified: %w", domain.ErrForbidden)
	}
	return nil
}
