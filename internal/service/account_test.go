package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drivewise/drivewise/internal/apperr"
	"github.com/drivewise/drivewise/internal/assets"
	"github.com/drivewise/drivewise/internal/auth"
	"github.com/drivewise/drivewise/internal/models"
	"github.com/drivewise/drivewise/internal/repository"
)

type fakeNotifier struct {
	welcomes  []string
	resetTos  []string
	resetURLs []string
}

func (f *fakeNotifier) SendWelcome(to, name string) error {
	f.welcomes = append(f.welcomes, to)
	return nil
}

func (f *fakeNotifier) SendPasswordReset(to, name, resetURL string) error {
	f.resetTos = append(f.resetTos, to)
	f.resetURLs = append(f.resetURLs, resetURL)
	return nil
}

type accountFixture struct {
	accounts *AccountService
	listings *ListingService
	repo     *repository.MemoryAccountRepository
	cars     *repository.MemoryListingRepository
	store    *assets.DiskStore
	tokens   *auth.TokenService
	notifier *fakeNotifier
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	log := testLogger()
	cfg := testConfig()
	repo := repository.NewMemoryAccountRepository()
	cars := repository.NewMemoryListingRepository()
	store, err := assets.NewDiskStore(t.TempDir(), log)
	require.NoError(t, err)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	notifier := &fakeNotifier{}
	return &accountFixture{
		accounts: NewAccountService(repo, cars, store, tokens, notifier, cfg, log),
		listings: NewListingService(cars, store, cfg, log),
		repo:     repo,
		cars:     cars,
		store:    store,
		tokens:   tokens,
		notifier: notifier,
	}
}

func validSignup() SignupInput {
	return SignupInput{
		FullName: "Ali Khan",
		Email:    "ali@example.com",
		Password: "secret1",
	}
}

func TestSignupValidation(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*SignupInput)
		field  string
	}{
		{"blank name", func(in *SignupInput) { in.FullName = " " }, "fullName"},
		{"missing email", func(in *SignupInput) { in.Email = "" }, "email"},
		{"bad email", func(in *SignupInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *SignupInput) { in.Password = "abc12" }, "password"},
		{"bad contact", func(in *SignupInput) { in.ContactNumber = "12345" }, "contactNumber"},
		{"contact too short", func(in *SignupInput) { in.ContactNumber = "+9230012345" }, "contactNumber"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validSignup()
			tc.mutate(&input)
			_, _, err := f.accounts.Signup(ctx, input)
			require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			require.Contains(t, apperr.FieldsOf(err), tc.field)
		})
	}
}

func TestSignupAcceptedContactFormats(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	a := validSignup()
	a.ContactNumber = "+923001234567"
	_, _, err := f.accounts.Signup(ctx, a)
	require.NoError(t, err)

	b := validSignup()
	b.Email = "second@example.com"
	b.ContactNumber = "03001234567"
	_, _, err = f.accounts.Signup(ctx, b)
	require.NoError(t, err)
}

func TestSignupIssuesTokenAndHashesPassword(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	user, token, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.NotEqual(t, "secret1", user.PasswordHash)

	email, err := f.tokens.Resolve(token)
	require.NoError(t, err)
	require.Equal(t, "ali@example.com", email)

	require.Equal(t, []string{"ali@example.com"}, f.notifier.welcomes)
}

func TestSignupDuplicateEmail(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)

	_, _, err = f.accounts.Signup(ctx, validSignup())
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestLoginUniformCredentialError(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)

	_, _, unknownErr := f.accounts.Login(ctx, "nobody@example.com", "secret1")
	_, _, wrongErr := f.accounts.Login(ctx, "ali@example.com", "wrong-password")

	require.Equal(t, apperr.KindAuth, apperr.KindOf(unknownErr))
	require.Equal(t, apperr.KindAuth, apperr.KindOf(wrongErr))
	require.Equal(t, unknownErr.Error(), wrongErr.Error(),
		"unknown email and wrong password must be indistinguishable")

	user, token, err := f.accounts.Login(ctx, "ali@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "ali@example.com", user.Email)
	require.NotEmpty(t, token)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)

	err = f.accounts.ChangePassword(ctx, "ali@example.com", "wrong", "newpassword1")
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	err = f.accounts.ChangePassword(ctx, "ali@example.com", "secret1", "short")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, f.accounts.ChangePassword(ctx, "ali@example.com", "secret1", "newpassword1"))

	_, _, err = f.accounts.Login(ctx, "ali@example.com", "secret1")
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err), "old password no longer works")
	_, _, err = f.accounts.Login(ctx, "ali@example.com", "newpassword1")
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)

	_, err = f.accounts.UpdateProfile(ctx, "ali@example.com", UpdateProfileInput{})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err), "empty update is rejected")

	_, err = f.accounts.UpdateProfile(ctx, "ali@example.com", UpdateProfileInput{ContactNumber: "12345"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	pic := pngUpload("me.png", 50)
	updated, err := f.accounts.UpdateProfile(ctx, "ali@example.com", UpdateProfileInput{
		FullName: "Ali K.",
		Picture:  &pic,
	})
	require.NoError(t, err)
	require.Equal(t, "Ali K.", updated.FullName)
	require.True(t, f.store.Exists(updated.ProfilePicture))
	firstPicture := updated.ProfilePicture

	// A newer picture replaces the previous managed one
	next := pngUpload("me2.jpg", 50)
	updated, err = f.accounts.UpdateProfile(ctx, "ali@example.com", UpdateProfileInput{Picture: &next})
	require.NoError(t, err)
	require.NotEqual(t, firstPicture, updated.ProfilePicture)
	require.False(t, f.store.Exists(firstPicture))
	require.True(t, f.store.Exists(updated.ProfilePicture))

	badPic := pngUpload("cv.pdf", 50)
	_, err = f.accounts.UpdateProfile(ctx, "ali@example.com", UpdateProfileInput{Picture: &badPic})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteAccountCascades(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)

	// Three listings with two images each, plus a profile picture
	for i := 0; i < 3; i++ {
		_, err := f.listings.Create(ctx, "ali@example.com",
			validCreateInput(pngUpload("a.png", 10), pngUpload("b.png", 10)))
		require.NoError(t, err)
	}
	pic := pngUpload("me.png", 10)
	_, err = f.accounts.UpdateProfile(ctx, "ali@example.com", UpdateProfileInput{Picture: &pic})
	require.NoError(t, err)
	require.Equal(t, 7, storedFiles(t, f.store))

	require.NoError(t, f.accounts.DeleteAccount(ctx, "ali@example.com"))

	remaining, err := f.cars.FindBySeller(ctx, "ali@example.com")
	require.NoError(t, err)
	require.Empty(t, remaining, "all listing documents are gone")
	require.Zero(t, storedFiles(t, f.store), "all assets are gone")
	_, err = f.accounts.Profile(ctx, "ali@example.com")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "the user document is gone")
}

// faultyListingRepo fails selected seller-scoped operations
type faultyListingRepo struct {
	repository.ListingRepository
	findBySellerErr   error
	deleteBySellerErr error
}

func (f *faultyListingRepo) FindBySeller(ctx context.Context, seller string) ([]models.Car, error) {
	if f.findBySellerErr != nil {
		return nil, f.findBySellerErr
	}
	return f.ListingRepository.FindBySeller(ctx, seller)
}

func (f *faultyListingRepo) DeleteBySeller(ctx context.Context, seller string) (int64, error) {
	if f.deleteBySellerErr != nil {
		return 0, f.deleteBySellerErr
	}
	return f.ListingRepository.DeleteBySeller(ctx, seller)
}

func TestDeleteAccountContinuesWhenListingCleanupFails(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fail func(*faultyListingRepo)
	}{
		{"listing lookup fails", func(f *faultyListingRepo) { f.findBySellerErr = errors.New("cursor timeout") }},
		{"listing delete fails", func(f *faultyListingRepo) { f.deleteBySellerErr = errors.New("write conflict") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAccountFixture(t)
			ctx := context.Background()

			_, _, err := f.accounts.Signup(ctx, validSignup())
			require.NoError(t, err)
			_, err = f.listings.Create(ctx, "ali@example.com", validCreateInput(pngUpload("a.png", 10)))
			require.NoError(t, err)

			faulty := &faultyListingRepo{ListingRepository: f.cars}
			tc.fail(faulty)
			accounts := NewAccountService(f.repo, faulty, f.store, f.tokens, f.notifier, testConfig(), testLogger())

			// The failing sub-step is logged and skipped, the user document
			// is still removed
			require.NoError(t, accounts.DeleteAccount(ctx, "ali@example.com"))
			_, err = accounts.Profile(ctx, "ali@example.com")
			require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		})
	}
}

func TestDeleteAccountContinuesWhenAssetRemovalFails(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)
	_, err = f.listings.Create(ctx, "ali@example.com",
		validCreateInput(pngUpload("a.png", 10), pngUpload("b.png", 10)))
	require.NoError(t, err)
	pic := pngUpload("me.png", 10)
	_, err = f.accounts.UpdateProfile(ctx, "ali@example.com", UpdateProfileInput{Picture: &pic})
	require.NoError(t, err)

	accounts := NewAccountService(f.repo, f.cars, stuckDeleteStore{f.store}, f.tokens, f.notifier, testConfig(), testLogger())
	require.NoError(t, accounts.DeleteAccount(ctx, "ali@example.com"))

	remaining, err := f.cars.FindBySeller(ctx, "ali@example.com")
	require.NoError(t, err)
	require.Empty(t, remaining, "listing documents go even when their files will not")
	_, err = accounts.Profile(ctx, "ali@example.com")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.Equal(t, 3, storedFiles(t, f.store), "the orphaned files are all that remains")
}

func TestForgotAndResetPassword(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Signup(ctx, validSignup())
	require.NoError(t, err)

	// Unknown accounts get the same silent success and no mail
	require.NoError(t, f.accounts.ForgotPassword(ctx, "nobody@example.com"))
	require.Empty(t, f.notifier.resetTos)

	require.NoError(t, f.accounts.ForgotPassword(ctx, "ali@example.com"))
	require.Equal(t, []string{"ali@example.com"}, f.notifier.resetTos)

	parts := strings.SplitN(f.notifier.resetURLs[0], "token=", 2)
	require.Len(t, parts, 2)
	token := parts[1]

	require.Equal(t, apperr.KindAuth, apperr.KindOf(f.accounts.ResetPassword(ctx, "garbage", "newpassword1")))
	require.Equal(t, apperr.KindValidation, apperr.KindOf(f.accounts.ResetPassword(ctx, token, "short")))

	// An identity token must not be accepted as a reset token
	identity, err := f.tokens.Issue("ali@example.com")
	require.NoError(t, err)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(f.accounts.ResetPassword(ctx, identity, "newpassword1")))

	require.NoError(t, f.accounts.ResetPassword(ctx, token, "newpassword1"))
	_, _, err = f.accounts.Login(ctx, "ali@example.com", "newpassword1")
	require.NoError(t, err)
}
