package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drivewise/drivewise/internal/apperr"
	"github.com/drivewise/drivewise/internal/assets"
	"github.com/drivewise/drivewise/internal/auth"
	"github.com/drivewise/drivewise/internal/config"
	"github.com/drivewise/drivewise/internal/models"
	"github.com/drivewise/drivewise/internal/repository"
)

const (
	// minSignupPassword applies at signup
	minSignupPassword = 6
	// minNewPassword applies to password change and reset
	minNewPassword = 8

	resetTokenTTL = 15 * time.Minute
)

var (
	emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	// phoneRegex accepts a country-code-prefixed 10-digit number or a
	// leading-zero 11-digit number
	phoneRegex = regexp.MustCompile(`^(\+92[0-9]{10}|0[0-9]{10})$`)
)

// Notifier sends account-related mail, best-effort
type Notifier interface {
	SendWelcome(to, name string) error
	SendPasswordReset(to, name, resetURL string) error
}

// AccountService orchestrates the user account lifecycle
type AccountService struct {
	repo     repository.AccountRepository
	listings repository.ListingRepository
	store    assets.Store
	tokens   *auth.TokenService
	notifier Notifier
	config   *config.Config
	log      *logrus.Logger
}

// NewAccountService initializes a new account service
func NewAccountService(
	repo repository.AccountRepository,
	listings repository.ListingRepository,
	store assets.Store,
	tokens *auth.TokenService,
	notifier Notifier,
	cfg *config.Config,
	log *logrus.Logger,
) *AccountService {
	return &AccountService{
		repo:     repo,
		listings: listings,
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		config:   cfg,
		log:      log,
	}
}

// SignupInput carries the raw signup fields
type SignupInput struct {
	FullName      string
	Email         string
	Password      string
	ContactNumber string
}

// Signup registers a new account and returns it with a fresh identity token
func (s *AccountService) Signup(ctx context.Context, input SignupInput) (*models.User, string, error) {
	fieldErrors := map[string]string{}

	requireNonBlank(fieldErrors, "fullName", input.FullName, "Full name is required")
	email := strings.TrimSpace(input.Email)
	if email == "" {
		fieldErrors["email"] = "Email is required"
	} else if !emailRegex.MatchString(email) {
		fieldErrors["email"] = "Email is invalid"
	}
	if input.Password == "" {
		fieldErrors["password"] = "Password is required"
	} else if len(input.Password) < minSignupPassword {
		fieldErrors["password"] = fmt.Sprintf("Password must be at least %d characters", minSignupPassword)
	}
	contact := strings.TrimSpace(input.ContactNumber)
	if contact != "" && !phoneRegex.MatchString(contact) {
		fieldErrors["contactNumber"] = "Invalid phone number format. Use +923001234567 or 03001234567"
	}

	if len(fieldErrors) > 0 {
		return nil, "", apperr.Validation(fieldErrors)
	}

	// Uniqueness check; the window between check and insert is accepted
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, "", apperr.Conflict("Email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.log.Errorf("Failed to check email %s: %v", email, err)
		return nil, "", apperr.Dependency("failed to create account", err)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		s.log.Errorf("Failed to hash password: %v", err)
		return nil, "", apperr.Dependency("failed to create account", err)
	}

	user := &models.User{
		FullName:      strings.TrimSpace(input.FullName),
		Email:         email,
		PasswordHash:  hash,
		ContactNumber: contact,
		CreatedAt:     time.Now().UTC(),
	}
	id, err := s.repo.Create(ctx, user)
	if err != nil {
		s.log.Errorf("Failed to store user %s: %v", email, err)
		return nil, "", apperr.Dependency("failed to create account", err)
	}
	user.ID = id

	token, err := s.tokens.Issue(email)
	if err != nil {
		s.log.Errorf("Failed to issue token for %s: %v", email, err)
		return nil, "", apperr.Dependency("failed to create account", err)
	}

	if s.notifier != nil {
		if err := s.notifier.SendWelcome(email, user.FullName); err != nil {
			s.log.Errorf("Failed to send welcome email to %s: %v", email, err)
		}
	}

	s.log.Infof("User registered: %s", email)
	return user, token, nil
}

// Login authenticates a user and returns a fresh identity token. Unknown
// email and wrong password fail identically.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	fieldErrors := map[string]string{}
	email = strings.TrimSpace(email)
	if email == "" {
		fieldErrors["email"] = "Email is required"
	} else if !emailRegex.MatchString(email) {
		fieldErrors["email"] = "Email is invalid"
	}
	if password == "" {
		fieldErrors["password"] = "Password is required"
	}
	if len(fieldErrors) > 0 {
		return nil, "", apperr.Validation(fieldErrors)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Errorf("Failed to look up user %s: %v", email, err)
			return nil, "", apperr.Dependency("failed to log in", err)
		}
		return nil, "", apperr.Auth("Invalid email or password")
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, "", apperr.Auth("Invalid email or password")
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		s.log.Errorf("Failed to issue token for %s: %v", email, err)
		return nil, "", apperr.Dependency("failed to log in", err)
	}

	s.log.Infof("User logged in: %s", email)
	return user, token, nil
}

// Profile returns the account behind the caller identity
func (s *AccountService) Profile(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		s.log.Errorf("Failed to load user %s: %v", email, err)
		return nil, apperr.Dependency("failed to load profile", err)
	}
	return user, nil
}

// ChangePassword re-verifies the current password before storing a new hash
func (s *AccountService) ChangePassword(ctx context.Context, email, current, newPassword string) error {
	if current == "" {
		return apperr.ValidationField("currentPassword", "Current password is required")
	}
	if len(newPassword) < minNewPassword {
		return apperr.ValidationField("newPassword",
			fmt.Sprintf("New password must be at least %d characters", minNewPassword))
	}

	user, err := s.Profile(ctx, email)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(current, user.PasswordHash) {
		return apperr.Auth("Current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		s.log.Errorf("Failed to hash password: %v", err)
		return apperr.Dependency("failed to change password", err)
	}
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{"passwordHash": hash}); err != nil {
		s.log.Errorf("Failed to update password for %s: %v", email, err)
		return apperr.Dependency("failed to change password", err)
	}

	s.log.Infof("Password changed: %s", email)
	return nil
}

// UpdateProfileInput carries the optional profile changes; blank fields are
// left untouched
type UpdateProfileInput struct {
	FullName      string
	ContactNumber string
	Picture       *Upload
}

// UpdateProfile applies the supplied profile fields; a new profile picture
// replaces the previous managed one
func (s *AccountService) UpdateProfile(ctx context.Context, email string, input UpdateProfileInput) (*models.User, error) {
	if strings.TrimSpace(input.FullName) == "" && strings.TrimSpace(input.ContactNumber) == "" && input.Picture == nil {
		return nil, apperr.ValidationField("general", "No fields to update")
	}

	fields := map[string]any{}
	if name := strings.TrimSpace(input.FullName); name != "" {
		fields["fullName"] = name
	}
	if contact := strings.TrimSpace(input.ContactNumber); contact != "" {
		if !phoneRegex.MatchString(contact) {
			return nil, apperr.ValidationField("contactNumber",
				"Invalid phone number format. Use +923001234567 or 03001234567")
		}
		fields["contactNumber"] = contact
	}
	if input.Picture != nil {
		if err := checkUpload(*input.Picture); err != nil {
			return nil, apperr.ValidationField("profilePicture", err.Error())
		}
	}

	user, err := s.Profile(ctx, email)
	if err != nil {
		return nil, err
	}

	if input.Picture != nil {
		ref, err := s.store.Save(input.Picture.Data, input.Picture.Filename)
		if err != nil {
			s.log.Errorf("Failed to save profile picture for %s: %v", email, err)
			return nil, apperr.Dependency("failed to save profile picture", err)
		}
		fields["profilePicture"] = ref
		// Old picture goes after the new one is safely stored; external
		// placeholder URLs are left alone
		if user.ProfilePicture != "" && assets.Managed(user.ProfilePicture) {
			if !s.store.Delete(user.ProfilePicture) {
				s.log.Warnf("Previous profile picture %s was not removed", user.ProfilePicture)
			}
		}
	}

	if err := s.repo.UpdateFields(ctx, user.ID, fields); err != nil {
		s.log.Errorf("Failed to update profile for %s: %v", email, err)
		return nil, apperr.Dependency("failed to update profile", err)
	}

	updated, err := s.Profile(ctx, email)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Profile updated: %s", email)
	return updated, nil
}

// DeleteAccount removes the account, every listing it owns and all their
// assets. Sub-step failures are logged and the cascade continues.
func (s *AccountService) DeleteAccount(ctx context.Context, email string) error {
	user, err := s.Profile(ctx, email)
	if err != nil {
		return err
	}

	s.deleteOwnedListings(ctx, email)

	if user.ProfilePicture != "" && assets.Managed(user.ProfilePicture) {
		if !s.store.Delete(user.ProfilePicture) {
			s.log.Warnf("Profile picture %s was not removed", user.ProfilePicture)
		}
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		s.log.Errorf("Failed to delete user %s: %v", email, err)
		return apperr.Dependency("failed to delete account", err)
	}

	s.log.Infof("Account deleted: %s", email)
	return nil
}

// deleteOwnedListings removes the user's listing documents and their assets,
// best-effort
func (s *AccountService) deleteOwnedListings(ctx context.Context, email string) {
	cars, err := s.listings.FindBySeller(ctx, email)
	if err != nil {
		s.log.Errorf("Failed to load listings of %s for cascade delete: %v", email, err)
	}
	for _, car := range cars {
		for _, ref := range car.Images {
			if !assets.Managed(ref) {
				continue
			}
			if !s.store.Delete(ref) {
				s.log.Warnf("Asset %s was not removed", ref)
			}
		}
	}
	deleted, err := s.listings.DeleteBySeller(ctx, email)
	if err != nil {
		s.log.Errorf("Failed to delete listings of %s: %v", email, err)
		return
	}
	s.log.Infof("Cascade deleted %d listings of %s", deleted, email)
}

// ForgotPassword issues a reset token and mails a reset link. The response is
// uniform whether or not the account exists.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !emailRegex.MatchString(email) {
		return apperr.ValidationField("email", "Email is invalid")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Errorf("Failed to look up user %s: %v", email, err)
		}
		// Do not reveal whether the account exists
		return nil
	}

	token, err := s.tokens.IssueReset(email, resetTokenTTL)
	if err != nil {
		s.log.Errorf("Failed to issue reset token for %s: %v", email, err)
		return nil
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.BaseURL, token)
	if s.notifier != nil {
		if err := s.notifier.SendPasswordReset(email, user.FullName, resetURL); err != nil {
			s.log.Errorf("Failed to send reset email to %s: %v", email, err)
		}
	}
	return nil
}

// ResetPassword replaces the password of the account bound to a valid reset token
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := s.tokens.ResolveReset(token)
	if err != nil {
		return apperr.Auth("Invalid or expired reset link")
	}
	if len(newPassword) < minNewPassword {
		return apperr.ValidationField("newPassword",
			fmt.Sprintf("New password must be at least %d characters", minNewPassword))
	}

	user, err := s.Profile(ctx, email)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		s.log.Errorf("Failed to hash password: %v", err)
		return apperr.Dependency("failed to reset password", err)
	}
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{"passwordHash": hash}); err != nil {
		s.log.Errorf("Failed to reset password for %s: %v", email, err)
		return apperr.Dependency("failed to reset password", err)
	}

	s.log.Infof("Password reset: %s", email)
	return nil
}
