package account

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-account-api/internal/application/auth"
	"github.com/go-account-api/internal/application/verification"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) Create(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAccountStore) Save(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}

type mockImageStore struct{ mock.Mock }

func (m *mockImageStore) Create(ctx context.Context, img *domain.ProfileImage) error {
	return m.Called(ctx, img).Error(0)
}
func (m *mockImageStore) FindByAccountID(ctx context.Context, accountID string) (*domain.ProfileImage, error) {
	args := m.Called(ctx, accountID)
	if img, _ := args.Get(0).(*domain.ProfileImage); img != nil {
		return img, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockImageStore) Delete(ctx context.Context, img *domain.ProfileImage) error {
	return m.Called(ctx, img).Error(0)
}

type mockBlobStore struct{ mock.Mock }

func (m *mockBlobStore) Put(ctx context.Context, accountID, imageID, fileName string, r io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, accountID, imageID, fileName, r, contentType)
	return args.String(0), args.Error(1)
}
func (m *mockBlobStore) TemporaryURL(ctx context.Context, location string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, location, ttl)
	return args.String(0), args.Error(1)
}
func (m *mockBlobStore) Delete(ctx context.Context, location string) error {
	return m.Called(ctx, location).Error(0)
}

type mockIssuer struct{ mock.Mock }

func (m *mockIssuer) Issue(ctx context.Context, accountID string) (*verification.Issued, error) {
	args := m.Called(ctx, accountID)
	if i, _ := args.Get(0).(*verification.Issued); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDeliverer struct{ mock.Mock }

func (m *mockDeliverer) Deliver(ctx context.Context, email, link string) error {
	return m.Called(ctx, email, link).Error(0)
}

// --- helpers ---

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	accounts  *mockAccountStore
	images    *mockImageStore
	blobs     *mockBlobStore
	issuer    *mockIssuer
	deliverer *mockDeliverer
	codec     *credential.Codec
}

func newFixture() *fixture {
	return &fixture{
		accounts:  &mockAccountStore{},
		images:    &mockImageStore{},
		blobs:     &mockBlobStore{},
		issuer:    &mockIssuer{},
		deliverer: &mockDeliverer{},
		codec:     credential.NewCodec(bcrypt.MinCost),
	}
}

func (f *fixture) svc() Service {
	return NewService(ServiceDeps{
		AccountRepo: f.accounts,
		ImageRepo:   f.images,
		Blobs:       f.blobs,
		Issuer:      f.issuer,
		Deliverer:   f.deliverer,
		Codec:       f.codec,
		Now:         func() time.Time { return fixedNow },
	})
}

func baseReq() domain.CreateAccountRequest {
	return domain.CreateAccountRequest{Email: "a@x.com", Password: "P@ss1", FirstName: "A", LastName: "B"}
}

func issued(link string) *verification.Issued {
	return &verification.Issued{Link: link, ExpiresAt: fixedNow.Add(2 * time.Minute)}
}

func strPtr(s string) *string { return &s }

func verifiedAccount() *domain.Account {
	return &domain.Account{AccountID: "acc-1", Email: "a@x.com", PasswordHash: "digest", FirstName: "A", LastName: "B", Verified: true}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	var created *domain.Account
	f.accounts.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Account)
	}).Return(nil)
	f.issuer.On("Issue", mock.Anything, mock.Anything).Return(issued("http://h/verify?token=t"), nil)
	f.deliverer.On("Deliver", mock.Anything, "a@x.com", "http://h/verify?token=t").Return(nil)

	got, err := f.svc().Register(context.Background(), baseReq())

	require.NoError(t, err)
	assert.Empty(t, got.PasswordHash)
	assert.False(t, got.Verified)
	assert.Equal(t, "A", got.FirstName)
	assert.Equal(t, fixedNow, got.CreatedAt)
	require.NotNil(t, created)
	assert.True(t, f.codec.Verify("P@ss1", created.PasswordHash))
	f.issuer.AssertCalled(t, "Issue", mock.Anything, created.AccountID)
	f.deliverer.AssertExpectations(t)
}

func TestRegister_EmailConflict(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "a@x.com").Return(&domain.Account{AccountID: "first"}, nil)

	_, err := f.svc().Register(context.Background(), baseReq())

	assert.ErrorIs(t, err, domain.ErrConflict)
	f.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.accounts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestRegister_StoreUniqueConstraintIsConflict(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	f.accounts.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)

	_, err := f.svc().Register(context.Background(), baseReq())

	assert.ErrorIs(t, err, domain.ErrConflict)
	f.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestRegister_InvalidShape_NoIO(t *testing.T) {
	cases := map[string]domain.CreateAccountRequest{
		"bad email":     {Email: "nope", Password: "p", FirstName: "A", LastName: "B"},
		"missing first": {Email: "a@x.com", Password: "p", LastName: "B"},
		"long password": {Email: "a@x.com", Password: strings.Repeat("x", 73), FirstName: "A", LastName: "B"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc().Register(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrBadRequest)
			f.accounts.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_DeliveryFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	f.accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.issuer.On("Issue", mock.Anything, mock.Anything).Return(issued("link"), nil)
	f.deliverer.On("Deliver", mock.Anything, "a@x.com", "link").Return(errors.New("sns down"))

	got, err := f.svc().Register(context.Background(), baseReq())

	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
}

func TestRegister_IssueFailureIsInternal(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	f.accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.issuer.On("Issue", mock.Anything, mock.Anything).Return(nil, errors.New("token table missing"))

	_, err := f.svc().Register(context.Background(), baseReq())

	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotContains(t, err.Error(), "token table missing")
	f.deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_LookupFailureIsInternal(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("conn reset"))

	_, err := f.svc().Register(context.Background(), baseReq())

	assert.ErrorIs(t, err, domain.ErrInternal)
}

// --- GetProfile ---

func TestGetProfile_StripsDigest(t *testing.T) {
	a := verifiedAccount()

	got, err := newFixture().svc().GetProfile(context.Background(), a)

	require.NoError(t, err)
	assert.Empty(t, got.PasswordHash)
	assert.Equal(t, "digest", a.PasswordHash)
}

// --- UpdateProfile ---

func TestUpdateProfile_RejectsEmail(t *testing.T) {
	f := newFixture()
	a := verifiedAccount()

	err := f.svc().UpdateProfile(context.Background(), a, domain.UpdateAccountRequest{Email: strPtr(a.Email), FirstName: strPtr("Z")})

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	f.accounts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateProfile_RejectsEmpty(t *testing.T) {
	f := newFixture()

	err := f.svc().UpdateProfile(context.Background(), verifiedAccount(), domain.UpdateAccountRequest{})

	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdateProfile_RejectsBlankName(t *testing.T) {
	f := newFixture()

	err := f.svc().UpdateProfile(context.Background(), verifiedAccount(), domain.UpdateAccountRequest{LastName: strPtr("")})

	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdateProfile_RehashesAndRefreshesTimestamp(t *testing.T) {
	f := newFixture()
	a := verifiedAccount()
	f.accounts.On("Save", mock.Anything, mock.MatchedBy(func(u *domain.Account) bool {
		return u.FirstName == "Z" && u.LastName == "B" && u.Email == "a@x.com" &&
			u.UpdatedAt.Equal(fixedNow) && f.codec.Verify("new-secret", u.PasswordHash)
	})).Return(nil)

	err := f.svc().UpdateProfile(context.Background(), a, domain.UpdateAccountRequest{FirstName: strPtr("Z"), Password: strPtr("new-secret")})

	require.NoError(t, err)
	f.accounts.AssertExpectations(t)
}

func TestUpdateProfile_SaveFailureIsInternal(t *testing.T) {
	f := newFixture()
	f.accounts.On("Save", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	err := f.svc().UpdateProfile(context.Background(), verifiedAccount(), domain.UpdateAccountRequest{LastName: strPtr("C")})

	assert.ErrorIs(t, err, domain.ErrInternal)
}

// --- AttachImage ---

func pngUpload(name string) *domain.ImageUpload {
	return &domain.ImageUpload{Reader: bytes.NewReader([]byte("png")), FileName: name, ContentType: "image/png", Size: 3}
}

func TestAttachImage_RejectsBeforeIO(t *testing.T) {
	cases := map[string]*domain.ImageUpload{
		"absent":     nil,
		"no reader":  {FileName: "a.png", ContentType: "image/png"},
		"wrong type": {Reader: strings.NewReader("gif"), FileName: "a.gif", ContentType: "image/gif"},
	}
	for name, up := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc().AttachImage(context.Background(), verifiedAccount(), up)
			assert.ErrorIs(t, err, domain.ErrBadRequest)
			f.images.AssertNotCalled(t, "FindByAccountID", mock.Anything, mock.Anything)
			f.blobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAttachImage_First(t *testing.T) {
	f := newFixture()
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(nil, domain.ErrNotFound)
	f.blobs.On("Put", mock.Anything, "acc-1", mock.Anything, "pic.png", mock.Anything, "image/png").Return("s3://b/user-images/acc-1/pic.png", nil)
	f.images.On("Create", mock.Anything, mock.Anything).Return(nil)

	img, err := f.svc().AttachImage(context.Background(), verifiedAccount(), pngUpload("pic.png"))

	require.NoError(t, err)
	assert.Equal(t, "pic.png", img.FileName)
	assert.Equal(t, "acc-1", img.AccountID)
	assert.Equal(t, fixedNow, img.UploadDate)
	assert.NotEmpty(t, img.ImageID)
	f.blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestAttachImage_ReplacesExistingInOrder(t *testing.T) {
	f := newFixture()
	prev := &domain.ProfileImage{ImageID: "old", FileName: "pic.png", AccountID: "acc-1", URL: "s3://b/user-images/acc-1/old/pic.png"}
	var calls []string
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(prev, nil)
	f.blobs.On("Delete", mock.Anything, prev.URL).Run(func(mock.Arguments) { calls = append(calls, "blob.delete") }).Return(nil)
	f.images.On("Delete", mock.Anything, prev).Run(func(mock.Arguments) { calls = append(calls, "row.delete") }).Return(nil)
	f.blobs.On("Put", mock.Anything, "acc-1", mock.Anything, "pic2.jpg", mock.Anything, "image/jpeg").Run(func(mock.Arguments) { calls = append(calls, "blob.put") }).Return("loc", nil)
	f.images.On("Create", mock.Anything, mock.Anything).Run(func(mock.Arguments) { calls = append(calls, "row.create") }).Return(nil)

	up := &domain.ImageUpload{Reader: strings.NewReader("jpg"), FileName: "pic2.jpg", ContentType: "image/jpeg", Size: 3}
	img, err := f.svc().AttachImage(context.Background(), verifiedAccount(), up)

	require.NoError(t, err)
	assert.Equal(t, "pic2.jpg", img.FileName)
	assert.Equal(t, []string{"blob.delete", "row.delete", "blob.put", "row.create"}, calls)
}

func TestAttachImage_SanitizesObjectName(t *testing.T) {
	f := newFixture()
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(nil, domain.ErrNotFound)
	f.blobs.On("Put", mock.Anything, "acc-1", mock.Anything, "my_pic.png", mock.Anything, "image/png").Return("loc", nil)
	f.images.On("Create", mock.Anything, mock.Anything).Return(nil)

	img, err := f.svc().AttachImage(context.Background(), verifiedAccount(), pngUpload("../../my pic.png"))

	require.NoError(t, err)
	assert.Equal(t, "../../my pic.png", img.FileName)
	f.blobs.AssertExpectations(t)
}

func TestAttachImage_BlobFailureIsInternal(t *testing.T) {
	f := newFixture()
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(nil, domain.ErrNotFound)
	f.blobs.On("Put", mock.Anything, "acc-1", mock.Anything, "pic.png", mock.Anything, "image/png").Return("", errors.New("403"))

	_, err := f.svc().AttachImage(context.Background(), verifiedAccount(), pngUpload("pic.png"))

	assert.ErrorIs(t, err, domain.ErrInternal)
	f.images.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- GetImage ---

func TestGetImage_ReturnsTemporaryURL(t *testing.T) {
	f := newFixture()
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(&domain.ProfileImage{ImageID: "i1", FileName: "pic.png", URL: "loc", AccountID: "acc-1"}, nil)
	f.blobs.On("TemporaryURL", mock.Anything, "loc", DefaultImageURLTTL).Return("https://signed", nil)

	img, err := f.svc().GetImage(context.Background(), verifiedAccount())

	require.NoError(t, err)
	assert.Equal(t, "https://signed", img.URL)
	assert.Equal(t, "i1", img.ImageID)
}

func TestGetImage_NotFound(t *testing.T) {
	f := newFixture()
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(nil, domain.ErrNotFound)

	_, err := f.svc().GetImage(context.Background(), verifiedAccount())

	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.blobs.AssertNotCalled(t, "TemporaryURL", mock.Anything, mock.Anything, mock.Anything)
}

// --- DeleteImage ---

func TestDeleteImage_NotFound(t *testing.T) {
	f := newFixture()
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(nil, domain.ErrNotFound)

	err := f.svc().DeleteImage(context.Background(), verifiedAccount())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteImage_BlobThenRow(t *testing.T) {
	f := newFixture()
	img := &domain.ProfileImage{ImageID: "i1", AccountID: "acc-1", URL: "s3://b/user-images/acc-1/i1/pic.png"}
	var calls []string
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(img, nil)
	f.blobs.On("Delete", mock.Anything, img.URL).Run(func(mock.Arguments) { calls = append(calls, "blob") }).Return(nil)
	f.images.On("Delete", mock.Anything, img).Run(func(mock.Arguments) { calls = append(calls, "row") }).Return(nil)

	err := f.svc().DeleteImage(context.Background(), verifiedAccount())

	require.NoError(t, err)
	assert.Equal(t, []string{"blob", "row"}, calls)
}

// --- scenarios over in-memory adapters ---

type memAccounts struct{ byEmail map[string]*domain.Account }

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if a, ok := m.byEmail[email]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memAccounts) FindByID(_ context.Context, accountID string) (*domain.Account, error) {
	for _, a := range m.byEmail {
		if a.AccountID == accountID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (m *memAccounts) Create(_ context.Context, a *domain.Account) error {
	if _, ok := m.byEmail[a.Email]; ok {
		return domain.ErrConflict
	}
	cp := *a
	m.byEmail[a.Email] = &cp
	return nil
}
func (m *memAccounts) Save(_ context.Context, a *domain.Account) error {
	cp := *a
	m.byEmail[a.Email] = &cp
	return nil
}

type memTokens struct{ byToken map[string]*domain.VerificationToken }

func (m *memTokens) Create(_ context.Context, t *domain.VerificationToken) error {
	m.byToken[t.Token] = t
	return nil
}
func (m *memTokens) FindByToken(_ context.Context, token string) (*domain.VerificationToken, error) {
	if t, ok := m.byToken[token]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

type memImages struct{ rows map[string]*domain.ProfileImage }

func (m *memImages) Create(_ context.Context, img *domain.ProfileImage) error {
	if _, ok := m.rows[img.AccountID]; ok {
		return domain.ErrConflict
	}
	m.rows[img.AccountID] = img
	return nil
}
func (m *memImages) FindByAccountID(_ context.Context, accountID string) (*domain.ProfileImage, error) {
	if img, ok := m.rows[accountID]; ok {
		return img, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memImages) Delete(_ context.Context, img *domain.ProfileImage) error {
	delete(m.rows, img.AccountID)
	return nil
}

type memBlobs struct{ objects map[string]string }

func (m *memBlobs) Put(_ context.Context, accountID, imageID, fileName string, r io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := "user-images/" + accountID + "/" + imageID + "/" + fileName
	m.objects[key] = string(b)
	return key, nil
}
func (m *memBlobs) TemporaryURL(_ context.Context, location string, _ time.Duration) (string, error) {
	if _, ok := m.objects[location]; !ok {
		return "", domain.ErrNotFound
	}
	return "https://signed/" + location, nil
}
func (m *memBlobs) Delete(_ context.Context, location string) error {
	delete(m.objects, location)
	return nil
}

// racingImages hides the stored row from the next lookup, as when a concurrent
// upload commits between this request's check and its insert.
type racingImages struct {
	*memImages
	missNext bool
}

func (r *racingImages) FindByAccountID(ctx context.Context, accountID string) (*domain.ProfileImage, error) {
	if r.missNext {
		r.missNext = false
		return nil, domain.ErrNotFound
	}
	return r.memImages.FindByAccountID(ctx, accountID)
}

type capturingDeliverer struct{ links []string }

func (c *capturingDeliverer) Deliver(_ context.Context, _, link string) error {
	c.links = append(c.links, link)
	return nil
}

func TestScenario_RegisterVerifyThenProfile(t *testing.T) {
	ctx := context.Background()
	accounts := &memAccounts{byEmail: map[string]*domain.Account{}}
	tokens := &memTokens{byToken: map[string]*domain.VerificationToken{}}
	codec := credential.NewCodec(bcrypt.MinCost)
	verifier := verification.NewService(verification.ServiceDeps{
		TokenRepo: tokens, AccountRepo: accounts, BaseURL: "http://localhost:8080",
		Generate: func() (string, error) { return "tok-1", nil },
	})
	deliverer := &capturingDeliverer{}
	svc := NewService(ServiceDeps{AccountRepo: accounts, Issuer: verifier, Deliverer: deliverer, Codec: codec})
	gate := auth.NewService(auth.ServiceDeps{AccountRepo: accounts, Codec: codec})

	created, err := svc.Register(ctx, baseReq())
	require.NoError(t, err)
	assert.False(t, created.Verified)
	assert.Equal(t, []string{"http://localhost:8080/verify?token=tok-1"}, deliverer.links)

	_, err = svc.Register(ctx, domain.CreateAccountRequest{Email: "a@x.com", Password: "other", FirstName: "X", LastName: "Y"})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "A", accounts.byEmail["a@x.com"].FirstName)

	a, err := gate.Authenticate(ctx, "a@x.com", "P@ss1")
	require.NoError(t, err)
	assert.ErrorIs(t, auth.RequireVerified(a), domain.ErrForbidden)

	_, err = verifier.Verify(ctx, "tok-1")
	require.NoError(t, err)

	a, err = gate.Authenticate(ctx, "a@x.com", "P@ss1")
	require.NoError(t, err)
	require.NoError(t, auth.RequireVerified(a))
	profile, err := svc.GetProfile(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "A", profile.FirstName)
	assert.Equal(t, "B", profile.LastName)
	assert.Empty(t, profile.PasswordHash)
}

func TestScenario_ReplaceImage(t *testing.T) {
	ctx := context.Background()
	images := &memImages{rows: map[string]*domain.ProfileImage{}}
	blobs := &memBlobs{objects: map[string]string{}}
	svc := NewService(ServiceDeps{ImageRepo: images, Blobs: blobs})
	a := verifiedAccount()

	_, err := svc.AttachImage(ctx, a, pngUpload("pic.png"))
	require.NoError(t, err)
	_, err = svc.AttachImage(ctx, a, &domain.ImageUpload{Reader: strings.NewReader("jpg"), FileName: "pic2.jpg", ContentType: "image/jpeg", Size: 3})
	require.NoError(t, err)

	require.Len(t, images.rows, 1)
	assert.Equal(t, "pic2.jpg", images.rows["acc-1"].FileName)
	require.Len(t, blobs.objects, 1)
	for key := range blobs.objects {
		assert.Equal(t, images.rows["acc-1"].URL, key)
		assert.True(t, strings.HasSuffix(key, "/pic2.jpg"))
	}

	got, err := svc.GetImage(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/"+images.rows["acc-1"].URL, got.URL)

	require.NoError(t, svc.DeleteImage(ctx, a))
	assert.ErrorIs(t, svc.DeleteImage(ctx, a), domain.ErrNotFound)
}

func TestScenario_LosingConcurrentUploadKeepsWinner(t *testing.T) {
	ctx := context.Background()
	images := &racingImages{memImages: &memImages{rows: map[string]*domain.ProfileImage{}}}
	blobs := &memBlobs{objects: map[string]string{}}
	svc := NewService(ServiceDeps{ImageRepo: images, Blobs: blobs})
	a := verifiedAccount()

	winner, err := svc.AttachImage(ctx, a, pngUpload("winner.png"))
	require.NoError(t, err)

	images.missNext = true
	_, err = svc.AttachImage(ctx, a, pngUpload("loser.png"))
	require.ErrorIs(t, err, domain.ErrConflict)

	require.Len(t, images.rows, 1)
	assert.Equal(t, winner.ImageID, images.rows["acc-1"].ImageID)
	require.Len(t, blobs.objects, 1)
	_, kept := blobs.objects[winner.URL]
	assert.True(t, kept)

	got, err := svc.GetImage(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/"+winner.URL, got.URL)
}

func TestAttachImage_ConflictRemovesOnlyOwnBlob(t *testing.T) {
	f := newFixture()
	f.images.On("FindByAccountID", mock.Anything, "acc-1").Return(nil, domain.ErrNotFound)
	f.blobs.On("Put", mock.Anything, "acc-1", mock.Anything, "pic.png", mock.Anything, "image/png").Return("s3://b/user-images/acc-1/new/pic.png", nil)
	f.images.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)
	f.blobs.On("Delete", mock.Anything, "s3://b/user-images/acc-1/new/pic.png").Return(errors.New("timeout"))

	_, err := f.svc().AttachImage(context.Background(), verifiedAccount(), pngUpload("pic.png"))

	assert.ErrorIs(t, err, domain.ErrConflict)
	f.blobs.AssertExpectations(t)
}
