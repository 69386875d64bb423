package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// ErrUserExists is returned when the user key or a login is taken.
var ErrUserExists = errors.New("user already exists")

type UserService struct {
	Store    store.Store
	Hasher   *cryptox.PasswordHasher
	Settings SettingsSource // optional, supplies the default role

	// Issuer labels generated TOTP secrets in authenticator apps.
	Issuer string
}

// NewUser describes an account to create.
type NewUser struct {
	UserKey       string
	Password      string
	RoleKeys      []string
	Logins        []domain.Login
	TfaEnabled    bool
	TfaOtpChannel string
}

// CreateUser creates an activated user in the tenant of ctx. Users without
// roles get the tenant's default role. Users with TFA get a TOTP secret.
func (s *UserService) CreateUser(ctx context.Context, nu NewUser) (domain.User, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return domain.User{}, err
	}
	nu.UserKey = strings.TrimSpace(nu.UserKey)
	if nu.UserKey == "" || nu.Password == "" {
		return domain.User{}, fmt.Errorf("user key and password are required")
	}
	if len(nu.Logins) == 0 {
		return domain.User{}, fmt.Errorf("at least one login is required")
	}

	if len(nu.RoleKeys) == 0 {
		role := domain.DefaultTenantSettings().Security.DefaultUserRole
		if s.Settings != nil {
			settings, err := s.Settings.Settings(ctx)
			if err != nil {
				return domain.User{}, err
			}
			role = settings.Security.DefaultUserRole
		}
		nu.RoleKeys = []string{role}
	}

	hash, err := s.Hasher.Hash(nu.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:            idx.New(),
		TenantKey:     key,
		UserKey:       nu.UserKey,
		PasswordHash:  hash,
		RoleKeys:      nu.RoleKeys,
		Activated:     true,
		TfaEnabled:    nu.TfaEnabled,
		TfaOtpChannel: nu.TfaOtpChannel,
		Logins:        nu.Logins,
	}
	if nu.TfaEnabled {
		secret, err := s.generateSecret(u)
		if err != nil {
			return domain.User{}, err
		}
		u.TfaOtpSecret = secret.Secret()
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("%w: %s", ErrUserExists, nu.UserKey)
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user created", "user_key", u.UserKey, "tfa", u.TfaEnabled)
	return u, nil
}

// GetUser fetches a user by key.
func (s *UserService) GetUser(ctx context.Context, userKey string) (domain.User, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Store.Users().GetUserByKey(ctx, key, userKey)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userKey)
	}
	return u, err
}

// SetLocked locks or unlocks a user. Locked users cannot sign in or
// refresh.
func (s *UserService) SetLocked(ctx context.Context, userKey string, locked bool) error {
	key, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	err = s.Store.Users().SetActivated(ctx, key, userKey, !locked)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userKey)
	}
	return err
}

// TfaEnrollment is the outcome of EnrollTfa. URL is the otpauth:// key for
// authenticator apps and is only shown once.
type TfaEnrollment struct {
	User domain.User
	URL  string
}

// EnrollTfa turns on the second factor of a user with a fresh TOTP secret.
// Enrolling again rotates the secret. An empty channel keeps the current
// one.
func (s *UserService) EnrollTfa(ctx context.Context, userKey, channel string) (TfaEnrollment, error) {
	u, err := s.GetUser(ctx, userKey)
	if err != nil {
		return TfaEnrollment{}, err
	}
	if channel == "" {
		channel = u.TfaOtpChannel
	}

	key, err := s.generateSecret(u)
	if err != nil {
		return TfaEnrollment{}, err
	}
	if err := s.Store.Users().SetTfa(ctx, u.TenantKey, u.UserKey, true, key.Secret(), channel); err != nil {
		return TfaEnrollment{}, fmt.Errorf("store tfa settings: %w", err)
	}

	u.TfaEnabled = true
	u.TfaOtpSecret = key.Secret()
	u.TfaOtpChannel = channel
	slogx.FromContext(ctx).Info("tfa enrolled", "user_key", u.UserKey, "channel", channel)
	return TfaEnrollment{User: u, URL: key.URL()}, nil
}

// DisableTfa turns off the second factor of a user and forgets the secret.
func (s *UserService) DisableTfa(ctx context.Context, userKey string) error {
	u, err := s.GetUser(ctx, userKey)
	if err != nil {
		return err
	}
	if err := s.Store.Users().SetTfa(ctx, u.TenantKey, u.UserKey, false, "", u.TfaOtpChannel); err != nil {
		return fmt.Errorf("store tfa settings: %w", err)
	}
	slogx.FromContext(ctx).Info("tfa disabled", "user_key", u.UserKey)
	return nil
}

// generateSecret labels the secret with the first login of u.
func (s *UserService) generateSecret(u domain.User) (*otp.Key, error) {
	account := u.UserKey
	if len(u.Logins) > 0 {
		account = u.Logins[0].Value
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.Issuer, AccountName: account})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	return key, nil
}
