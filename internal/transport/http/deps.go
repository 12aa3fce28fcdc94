package http

import (
	"context"
	"io"
	"time"

	"github.com/go-account-api/internal/domain"
)

// AccountRepository is the minimal interface the router requires from an account store.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	FindByID(ctx context.Context, accountID string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Save(ctx context.Context, a *domain.Account) error
}

// TokenRepository is the minimal interface the router requires from a verification token store.
type TokenRepository interface {
	Create(ctx context.Context, t *domain.VerificationToken) error
	FindByToken(ctx context.Context, token string) (*domain.VerificationToken, error)
}

// ImageRepository is the minimal interface the router requires from a profile image store.
type ImageRepository interface {
	Create(ctx context.Context, img *domain.ProfileImage) error
	FindByAccountID(ctx context.Context, accountID string) (*domain.ProfileImage, error)
	Delete(ctx context.Context, img *domain.ProfileImage) error
}

// BlobStore is the minimal interface the router requires from an object storage backend.
type BlobStore interface {
	Put(ctx context.Context, accountID, imageID, fileName string, r io.Reader, contentType string) (string, error)
	TemporaryURL(ctx context.Context, location string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, location string) error
}

// Codec hashes and checks account passwords.
type Codec interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}
