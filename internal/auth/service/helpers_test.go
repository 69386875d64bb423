package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/claims"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/filesystem"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

const testTenant = "acme"

func tenantCtx() context.Context {
	return tenant.WithKey(context.Background(), testTenant)
}

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Now()} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T) *claims.Codec {
	t.Helper()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "warden-test",
		NumKeys:   1,
	})
	require.NoError(t, err)
	return &claims.Codec{Keys: km, Issuer: "warden-test"}
}

func webClient() domain.Client {
	return domain.Client{
		TenantKey: testTenant,
		ClientID:  "web",
		Scopes:    []string{"openid", "profile"},
		AuthorizedGrantTypes: []string{
			domain.GrantPassword,
			domain.GrantRefreshToken,
			domain.GrantClientCredentials,
			domain.GrantTfaOtpToken,
		},
	}
}

// clientMap serves client registrations from memory.
type clientMap map[string]domain.Client

func (m clientMap) LookupClient(_ context.Context, clientID string) (domain.Client, error) {
	c, ok := m[clientID]
	if !ok {
		return domain.Client{}, ErrClientRegistrationNotFound
	}
	return c, nil
}

type tokenFixture struct {
	clock    *clock
	codec    *claims.Codec
	store    store.TokenStore
	settings *staticSettings
	clients  clientMap
	tokens   *TokenService
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	f := &tokenFixture{
		clock:    newClock(),
		codec:    newTestCodec(t),
		store:    memory.NewTokenStore(),
		settings: &staticSettings{settings: domain.DefaultTenantSettings()},
		clients:  clientMap{"web": webClient()},
	}
	f.codec.Now = f.clock.Now
	f.tokens = &TokenService{
		Store:             f.store,
		Codec:             f.codec,
		Validity:          &ValidityResolver{Settings: f.settings},
		Clients:           f.clients,
		Settings:          f.settings,
		ReuseRefreshToken: true,
		Now:               f.clock.Now,
	}
	return f
}

func aliceAuthentication() *domain.Authentication {
	return &domain.Authentication{
		TenantKey: testTenant,
		Request: domain.OAuth2Request{
			ClientID:   "web",
			Scope:      []string{"openid", "profile"},
			GrantType:  domain.GrantPassword,
			Parameters: map[string]string{"device": "phone"},
		},
		Principal: &domain.Principal{
			TenantKey: testTenant,
			UserKey:   "u-alice",
			Username:  "alice@example.com",
			RoleKeys:  []string{"ROLE_USER", "ROLE_AUDITOR"},
			Logins:    []domain.Login{{TypeKey: domain.LoginEmail, Value: "alice@example.com"}},
		},
		Authorities: []string{"ROLE_USER", "ROLE_AUDITOR"},
	}
}

// fakeUsers is an in-memory store.Users.
type fakeUsers struct {
	mu    sync.Mutex
	users []domain.User
}

func (f *fakeUsers) GetUserByKey(_ context.Context, tenantKey, userKey string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if tenant.Equal(u.TenantKey, tenantKey) && u.UserKey == userKey {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (f *fakeUsers) GetUserByLogin(_ context.Context, tenantKey, login string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if !tenant.Equal(u.TenantKey, tenantKey) {
			continue
		}
		for _, l := range u.Logins {
			if strings.EqualFold(l.Value, login) {
				return u, nil
			}
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (f *fakeUsers) CreateUser(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
	return nil
}

func (f *fakeUsers) SetActivated(_ context.Context, tenantKey, userKey string, activated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if tenant.Equal(u.TenantKey, tenantKey) && u.UserKey == userKey {
			f.users[i].Activated = activated
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUsers) SetTfa(_ context.Context, tenantKey, userKey string, enabled bool, secret, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if tenant.Equal(u.TenantKey, tenantKey) && u.UserKey == userKey {
			f.users[i].TfaEnabled = enabled
			f.users[i].TfaOtpSecret = secret
			f.users[i].TfaOtpChannel = channel
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUsers) DeleteUser(_ context.Context, tenantKey, userKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if tenant.Equal(u.TenantKey, tenantKey) && u.UserKey == userKey {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return nil
		}
	}
	return nil
}

func newPasswordHasher() *cryptox.PasswordHasher {
	return cryptox.NewPasswordHasher("test-pepper")
}

func newSQLiteStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newDocuments(t *testing.T) *filesystem.Documents {
	t.Helper()

	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)
	return docs
}

func tenantCtxFor(key string) context.Context {
	return tenant.WithKey(context.Background(), key)
}
