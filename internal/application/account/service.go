// Package account implements the account lifecycle: registration, the
// authenticated profile, and the single profile image.
package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-account-api/internal/application/verification"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/credential"
	"github.com/go-account-api/internal/pkg/id"
	"github.com/go-account-api/internal/pkg/validate"
	"github.com/rs/zerolog"
)

// DefaultImageURLTTL bounds how long a URL returned by GetImage stays usable.
const DefaultImageURLTTL = time.Hour

type Service interface {
	Register(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error)
	GetProfile(ctx context.Context, a *domain.Account) (*domain.Account, error)
	UpdateProfile(ctx context.Context, a *domain.Account, req domain.UpdateAccountRequest) error
	AttachImage(ctx context.Context, a *domain.Account, up *domain.ImageUpload) (*domain.ProfileImage, error)
	GetImage(ctx context.Context, a *domain.Account) (*domain.ProfileImage, error)
	DeleteImage(ctx context.Context, a *domain.Account) error
}

type accountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Save(ctx context.Context, a *domain.Account) error
}

type imageStore interface {
	Create(ctx context.Context, img *domain.ProfileImage) error
	FindByAccountID(ctx context.Context, accountID string) (*domain.ProfileImage, error)
	Delete(ctx context.Context, img *domain.ProfileImage) error
}

// blobStore addresses objects by the location Put returned, so removing one
// upload never touches another stored for the same account.
type blobStore interface {
	Put(ctx context.Context, accountID, imageID, fileName string, r io.Reader, contentType string) (string, error)
	TemporaryURL(ctx context.Context, location string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, location string) error
}

type tokenIssuer interface {
	Issue(ctx context.Context, accountID string) (*verification.Issued, error)
}

// Deliverer sends the verification link to the account's email address.
type Deliverer interface {
	Deliver(ctx context.Context, email, link string) error
}

type secretHasher interface {
	Hash(plaintext string) (string, error)
}

type service struct {
	accounts  accountStore
	images    imageStore
	blobs     blobStore
	issuer    tokenIssuer
	deliverer Deliverer
	codec     secretHasher
	urlTTL    time.Duration
	now       func() time.Time
	log       *zerolog.Logger
}

type ServiceDeps struct {
	AccountRepo accountStore
	ImageRepo   imageStore
	Blobs       blobStore
	Issuer      tokenIssuer
	// Deliverer may be nil, in which case the link is only logged.
	Deliverer   Deliverer
	Codec       secretHasher
	ImageURLTTL time.Duration
	Now         func() time.Time
	Logger      *zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts:  deps.AccountRepo,
		images:    deps.ImageRepo,
		blobs:     deps.Blobs,
		issuer:    deps.Issuer,
		deliverer: deps.Deliverer,
		codec:     deps.Codec,
		urlTTL:    deps.ImageURLTTL,
		now:       deps.Now,
		log:       deps.Logger,
	}
	if s.urlTTL <= 0 {
		s.urlTTL = DefaultImageURLTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		nop := zerolog.Nop()
		s.log = &nop
	}
	return s
}

// internal logs cause and returns an error that only exposes domain.ErrInternal.
func (s *service) internal(op, accountID string, cause error) error {
	s.log.Error().Err(cause).Str("op", op).Str("account_id", accountID).Msg("account operation failed")
	return fmt.Errorf("%s: %w", op, domain.ErrInternal)
}

func (s *service) Register(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBadRequest, err.Error())
	}
	if len(req.Password) > credential.MaxSecretBytes {
		return nil, fmt.Errorf("%w: password exceeds %d bytes", domain.ErrBadRequest, credential.MaxSecretBytes)
	}

	existing, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, s.internal("register", "", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}

	hash, err := s.codec.Hash(req.Password)
	if err != nil {
		return nil, s.internal("register", "", err)
	}
	now := s.now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		// The store's unique constraint is the final arbiter under concurrent registrations.
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return nil, s.internal("register", a.AccountID, err)
	}

	issued, err := s.issuer.Issue(ctx, a.AccountID)
	if err != nil {
		return nil, s.internal("register", a.AccountID, err)
	}
	s.deliver(ctx, a, issued)
	return a.Public(), nil
}

// deliver never fails registration; the account is already committed.
func (s *service) deliver(ctx context.Context, a *domain.Account, issued *verification.Issued) {
	if s.deliverer == nil {
		s.log.Info().Str("account_id", a.AccountID).Str("link", issued.Link).Msg("verification link issued")
		return
	}
	if err := s.deliverer.Deliver(ctx, a.Email, issued.Link); err != nil {
		s.log.Warn().Err(err).Str("account_id", a.AccountID).Msg("verification delivery failed")
		return
	}
	s.log.Debug().Str("account_id", a.AccountID).Msg("verification link delivered")
}

func (s *service) GetProfile(_ context.Context, a *domain.Account) (*domain.Account, error) {
	if a == nil {
		return nil, fmt.Errorf("no account: %w", domain.ErrUnauthorized)
	}
	return a.Public(), nil
}

func (s *service) UpdateProfile(ctx context.Context, a *domain.Account, req domain.UpdateAccountRequest) error {
	if a == nil {
		return fmt.Errorf("no account: %w", domain.ErrUnauthorized)
	}
	if req.Email != nil {
		return fmt.Errorf("%w: email cannot be changed", domain.ErrBadRequest)
	}
	if req.Empty() {
		return fmt.Errorf("%w: no fields to update", domain.ErrBadRequest)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrBadRequest, err.Error())
	}

	updated := *a
	if req.Password != nil {
		if len(*req.Password) > credential.MaxSecretBytes {
			return fmt.Errorf("%w: password exceeds %d bytes", domain.ErrBadRequest, credential.MaxSecretBytes)
		}
		hash, err := s.codec.Hash(*req.Password)
		if err != nil {
			return s.internal("update profile", a.AccountID, err)
		}
		updated.PasswordHash = hash
	}
	if req.FirstName != nil {
		updated.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		updated.LastName = *req.LastName
	}
	updated.UpdatedAt = s.now().UTC()

	if err := s.accounts.Save(ctx, &updated); err != nil {
		return s.internal("update profile", a.AccountID, err)
	}
	return nil
}

func (s *service) AttachImage(ctx context.Context, a *domain.Account, up *domain.ImageUpload) (*domain.ProfileImage, error) {
	if a == nil {
		return nil, fmt.Errorf("no account: %w", domain.ErrUnauthorized)
	}
	if up == nil || up.Reader == nil {
		return nil, fmt.Errorf("%w: file is required", domain.ErrBadRequest)
	}
	if !domain.ImageContentTypes[strings.ToLower(up.ContentType)] {
		return nil, fmt.Errorf("%w: unsupported image type %q", domain.ErrBadRequest, up.ContentType)
	}
	key := objectName(up.FileName)
	if key == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrBadRequest)
	}

	prev, err := s.images.FindByAccountID(ctx, a.AccountID)
	switch {
	case err == nil:
		if err := s.blobs.Delete(ctx, prev.URL); err != nil {
			return nil, s.internal("attach image", a.AccountID, err)
		}
		if err := s.images.Delete(ctx, prev); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, s.internal("attach image", a.AccountID, err)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, s.internal("attach image", a.AccountID, err)
	}

	imageID := id.New()
	location, err := s.blobs.Put(ctx, a.AccountID, imageID, key, up.Reader, strings.ToLower(up.ContentType))
	if err != nil {
		return nil, s.internal("attach image", a.AccountID, err)
	}
	img := &domain.ProfileImage{
		ImageID:    imageID,
		FileName:   up.FileName,
		URL:        location,
		UploadDate: s.now().UTC(),
		AccountID:  a.AccountID,
	}
	if err := s.images.Create(ctx, img); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent upload won the race; drop only the blob we just stored.
			if derr := s.blobs.Delete(ctx, location); derr != nil {
				s.log.Warn().Err(derr).Str("account_id", a.AccountID).Str("location", location).Msg("orphaned image blob")
			}
			return nil, fmt.Errorf("image already attached: %w", domain.ErrConflict)
		}
		return nil, s.internal("attach image", a.AccountID, err)
	}
	return img, nil
}

func (s *service) GetImage(ctx context.Context, a *domain.Account) (*domain.ProfileImage, error) {
	if a == nil {
		return nil, fmt.Errorf("no account: %w", domain.ErrUnauthorized)
	}
	img, err := s.images.FindByAccountID(ctx, a.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("profile image: %w", domain.ErrNotFound)
		}
		return nil, s.internal("get image", a.AccountID, err)
	}
	u, err := s.blobs.TemporaryURL(ctx, img.URL, s.urlTTL)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("profile image blob: %w", domain.ErrNotFound)
		}
		return nil, s.internal("get image", a.AccountID, err)
	}
	out := *img
	out.URL = u
	return &out, nil
}

func (s *service) DeleteImage(ctx context.Context, a *domain.Account) error {
	if a == nil {
		return fmt.Errorf("no account: %w", domain.ErrUnauthorized)
	}
	img, err := s.images.FindByAccountID(ctx, a.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("profile image: %w", domain.ErrNotFound)
		}
		return s.internal("delete image", a.AccountID, err)
	}
	if err := s.blobs.Delete(ctx, img.URL); err != nil {
		return s.internal("delete image", a.AccountID, err)
	}
	if err := s.images.Delete(ctx, img); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("profile image: %w", domain.ErrNotFound)
		}
		return s.internal("delete image", a.AccountID, err)
	}
	return nil
}

// objectName reduces a client supplied file name to a single safe path element.
func objectName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
