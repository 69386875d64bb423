package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// Candidate is a set of credentials waiting to be authenticated.
type Candidate interface {
	// Name is the login the candidate claims to be.
	Name() string
}

// PasswordCandidate is a username and password from the password grant.
type PasswordCandidate struct {
	Username string
	Password string
}

func (c PasswordCandidate) Name() string { return c.Username }

// TfaOtpCandidate is the second factor of the embedded strategy: the code
// the user typed and the hash carried by the pending token.
type TfaOtpCandidate struct {
	Username string
	Otp      string
	OtpHash  string
}

func (c TfaOtpCandidate) Name() string { return c.Username }

// TfaDelegatedCandidate is the second factor of the delegated strategy.
type TfaDelegatedCandidate struct {
	Username string
	Otp      string
	OtpID    string
}

func (c TfaDelegatedCandidate) Name() string { return c.Username }

// AuthenticationProvider checks one kind of candidate. Bad credentials are
// reported as ErrAuthenticationFailed; any other error is a fault.
type AuthenticationProvider interface {
	Supports(c Candidate) bool
	Authenticate(ctx context.Context, c Candidate) (*domain.Principal, error)
}

// AuthenticationHook observes authentications. Before may veto one by
// returning an error.
type AuthenticationHook interface {
	BeforeAuthenticate(ctx context.Context, c Candidate) error
	AfterAuthenticate(ctx context.Context, c Candidate, p *domain.Principal, err error)
}

// ProviderResolver picks a provider for a candidate, overriding the chain.
// Returning nil falls back to the chain.
type ProviderResolver func(ctx context.Context, c Candidate) AuthenticationProvider

// HookResolver picks the hook for a call. Returning nil disables hooks.
type HookResolver func(ctx context.Context) AuthenticationHook

// AuthenticationManager runs a candidate through the provider chain. The
// first provider supporting the candidate decides.
type AuthenticationManager struct {
	Providers []AuthenticationProvider
	Resolve   ProviderResolver // optional
	Hooks     HookResolver     // optional
}

// Authenticate returns the principal of c or an error wrapping
// ErrAuthenticationFailed.
func (m *AuthenticationManager) Authenticate(ctx context.Context, c Candidate) (*domain.Principal, error) {
	var hook AuthenticationHook
	if m.Hooks != nil {
		hook = m.Hooks(ctx)
	}
	if hook != nil {
		if err := hook.BeforeAuthenticate(ctx, c); err != nil {
			return nil, err
		}
	}

	p, err := m.authenticate(ctx, c)
	if hook != nil {
		hook.AfterAuthenticate(ctx, c, p, err)
	}
	return p, err
}

func (m *AuthenticationManager) authenticate(ctx context.Context, c Candidate) (*domain.Principal, error) {
	if m.Resolve != nil {
		if provider := m.Resolve(ctx, c); provider != nil {
			return provider.Authenticate(ctx, c)
		}
	}
	for _, provider := range m.Providers {
		if provider.Supports(c) {
			return provider.Authenticate(ctx, c)
		}
	}
	return nil, fmt.Errorf("%w: no provider for %T", ErrAuthenticationFailed, c)
}

// PasswordVerifier checks a password against its stored hash.
type PasswordVerifier interface {
	Verify(password, encodedHash string) error
}

// OtpVerifier checks a one-time code against its hash.
type OtpVerifier interface {
	Verify(code, hash string) error
}

// loadActiveUser finds the user signing in with login. Missing and locked
// users both fail authentication; only the log tells them apart.
func loadActiveUser(ctx context.Context, users store.Users, login string) (domain.User, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return domain.User{}, err
	}

	u, err := users.GetUserByLogin(ctx, key, login)
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Info("authentication failed, unknown login")
		return domain.User{}, fmt.Errorf("%w: unknown login", ErrAuthenticationFailed)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !u.Activated {
		slogx.FromContext(ctx).Info("authentication failed, user locked", slog.String("user_key", u.UserKey))
		return domain.User{}, fmt.Errorf("%w: user locked", ErrAuthenticationFailed)
	}
	return u, nil
}

// PasswordProvider authenticates PasswordCandidates against the user store.
type PasswordProvider struct {
	Users  store.Users
	Hasher PasswordVerifier
}

func (p *PasswordProvider) Supports(c Candidate) bool {
	_, ok := c.(PasswordCandidate)
	return ok
}

func (p *PasswordProvider) Authenticate(ctx context.Context, c Candidate) (*domain.Principal, error) {
	cand := c.(PasswordCandidate)
	if cand.Username == "" || cand.Password == "" {
		return nil, fmt.Errorf("%w: missing credentials", ErrAuthenticationFailed)
	}

	u, err := loadActiveUser(ctx, p.Users, cand.Username)
	if err != nil {
		return nil, err
	}
	if err := p.Hasher.Verify(cand.Password, u.PasswordHash); err != nil {
		slogx.FromContext(ctx).Info("authentication failed, wrong password", slog.String("user_key", u.UserKey))
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	return u.Principal(cand.Username), nil
}

// TfaOtpProvider verifies an embedded-strategy code against its hash.
type TfaOtpProvider struct {
	Users  store.Users
	Hasher OtpVerifier
}

func (p *TfaOtpProvider) Supports(c Candidate) bool {
	_, ok := c.(TfaOtpCandidate)
	return ok
}

func (p *TfaOtpProvider) Authenticate(ctx context.Context, c Candidate) (*domain.Principal, error) {
	cand := c.(TfaOtpCandidate)
	if cand.Otp == "" || cand.OtpHash == "" {
		return nil, fmt.Errorf("%w: missing otp", ErrAuthenticationFailed)
	}

	u, err := loadActiveUser(ctx, p.Users, cand.Username)
	if err != nil {
		return nil, err
	}
	if err := p.Hasher.Verify(cand.Otp, cand.OtpHash); err != nil {
		slogx.FromContext(ctx).Info("tfa verification failed", slog.String("user_key", u.UserKey))
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	return u.Principal(cand.Username), nil
}

// TfaDelegatedProvider asks the external OTP service to verify a code.
type TfaDelegatedProvider struct {
	Users store.Users
	Otp   OtpService
}

func (p *TfaDelegatedProvider) Supports(c Candidate) bool {
	_, ok := c.(TfaDelegatedCandidate)
	return ok
}

func (p *TfaDelegatedProvider) Authenticate(ctx context.Context, c Candidate) (*domain.Principal, error) {
	cand := c.(TfaDelegatedCandidate)
	if cand.Otp == "" || cand.OtpID == "" {
		return nil, fmt.Errorf("%w: missing otp", ErrAuthenticationFailed)
	}

	u, err := loadActiveUser(ctx, p.Users, cand.Username)
	if err != nil {
		return nil, err
	}
	ok, err := p.Otp.VerifyOtp(ctx, cand.OtpID, cand.Otp)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		slogx.FromContext(ctx).Info("delegated tfa verification failed", slog.String("user_key", u.UserKey))
		return nil, fmt.Errorf("%w: otp rejected", ErrAuthenticationFailed)
	}
	return u.Principal(cand.Username), nil
}

// StoreReauthenticator reloads users by key when a refresh token is used.
type StoreReauthenticator struct {
	Users store.Users
}

func (r *StoreReauthenticator) Reauthenticate(ctx context.Context, authn *domain.Authentication) (*domain.Principal, error) {
	u, err := r.Users.GetUserByKey(ctx, authn.TenantKey, authn.Principal.UserKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user removed", ErrAuthenticationFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.Activated {
		return nil, fmt.Errorf("%w: user locked", ErrAuthenticationFailed)
	}
	return u.Principal(authn.Principal.Username), nil
}
