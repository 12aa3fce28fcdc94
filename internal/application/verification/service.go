// Package verification issues and redeems the email verification tokens
// handed out at registration.
package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/id"
	pkgtoken "github.com/go-account-api/internal/pkg/token"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a freshly issued token stays valid.
const DefaultTTL = 2 * time.Minute

// Issued is a token together with the link that redeems it.
type Issued struct {
	Token     *domain.VerificationToken
	Link      string
	ExpiresAt time.Time
}

type Service interface {
	Issue(ctx context.Context, accountID string) (*Issued, error)
	Validate(ctx context.Context, token string) (string, error)
	Verify(ctx context.Context, token string) (*domain.Account, error)
}

type tokenStore interface {
	Create(ctx context.Context, t *domain.VerificationToken) error
	FindByToken(ctx context.Context, token string) (*domain.VerificationToken, error)
}

type accountStore interface {
	FindByID(ctx context.Context, accountID string) (*domain.Account, error)
	Save(ctx context.Context, a *domain.Account) error
}

type service struct {
	tokens   tokenStore
	accounts accountStore
	ttl      time.Duration
	baseURL  string
	now      func() time.Time
	generate func() (string, error)
	log      *zerolog.Logger
}

type ServiceDeps struct {
	TokenRepo   tokenStore
	AccountRepo accountStore
	TTL         time.Duration
	BaseURL     string
	// Now and Generate default to time.Now and a random hex token.
	Now      func() time.Time
	Generate func() (string, error)
	Logger   *zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		tokens:   deps.TokenRepo,
		accounts: deps.AccountRepo,
		ttl:      deps.TTL,
		baseURL:  strings.TrimRight(deps.BaseURL, "/"),
		now:      deps.Now,
		generate: deps.Generate,
		log:      deps.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = pkgtoken.NewVerificationToken
	}
	if s.log == nil {
		nop := zerolog.Nop()
		s.log = &nop
	}
	return s
}

// Issue stores a new token for accountID. Earlier tokens are left untouched
// and stay valid until they expire.
func (s *service) Issue(ctx context.Context, accountID string) (*Issued, error) {
	raw, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	now := s.now().UTC()
	t := &domain.VerificationToken{
		TokenID:   id.New(),
		Token:     raw,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &Issued{Token: t, Link: s.link(raw), ExpiresAt: t.ExpiresAt}, nil
}

func (s *service) link(raw string) string {
	return s.baseURL + "/verify?token=" + url.QueryEscape(raw)
}

// Validate returns the account a token was issued for. It never mutates the
// token, so it may be repeated until expiry.
func (s *service) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token is required: %w", domain.ErrBadRequest)
	}
	t, err := s.tokens.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("unknown token: %w", domain.ErrNotFound)
		}
		s.log.Error().Err(err).Msg("validate token: lookup failed")
		return "", fmt.Errorf("validate token: %w", domain.ErrInternal)
	}
	if t.ExpiredAt(s.now()) {
		return "", fmt.Errorf("token expired at %s: %w", t.ExpiresAt.Format(time.RFC3339), domain.ErrExpired)
	}
	return t.AccountID, nil
}

// Verify validates token and marks its account verified. Already verified
// accounts are returned unchanged. Unknown and expired tokens also match
// domain.ErrBadRequest so callers can tell them apart from a vanished account.
func (s *service) Verify(ctx context.Context, token string) (*domain.Account, error) {
	accountID, err := s.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpired) {
			return nil, fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
		}
		return nil, err
	}
	a, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
		}
		s.log.Error().Err(err).Str("account_id", accountID).Msg("verify: account lookup failed")
		return nil, fmt.Errorf("verify: %w", domain.ErrInternal)
	}
	if a.Verified {
		return a.Public(), nil
	}
	a.Verified = true
	a.UpdatedAt = s.now().UTC()
	if err := s.accounts.Save(ctx, a); err != nil {
		s.log.Error().Err(err).Str("account_id", accountID).Msg("verify: save failed")
		return nil, fmt.Errorf("verify: %w", domain.ErrInternal)
	}
	return a.Public(), nil
}
