package auth_test

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/app"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/filesystem"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

/*
 * Common constants and helper functions for the end-to-end tests. Each test
 * runs the complete application in process behind an httptest server and
 * talks to it through the SDK.
 */

const (
	testTenant  = "acme"
	otherTenant = "globex"
	testIssuer  = "warden-e2e"

	adminUsername = "admin@acme.test"
	adminPassword = "Admin123!"
	userUsername  = "alice"
	userPassword  = "Alice123!"

	webClientID = "web"
)

var clientScopes = []string{"openid", "profile"}

const privilegesYAML = `
billing:
  - key: invoice.read
    description: Read invoices
  - key: invoice.write
  - key: invoice.delete
`

const rolesYAML = `
ROLE_ADMIN:
  description: Administrators
ROLE_USER:
  description: Users
`

const permissionsYAML = `
billing:
  ROLE_ADMIN:
    - privilegeKey: invoice.read
    - privilegeKey: invoice.write
  ROLE_USER:
    - privilegeKey: invoice.read
`

type testServer struct {
	URL          string
	App          *app.Application
	ClientSecret string
}

type setup struct {
	cfg      app.Config
	settings map[string]string // tenant -> tenant-config.yml
	tfaUsers bool
}

type serverOption func(*setup)

// withDefaultRateLimits keeps the production rate limits, for the tests of
// rate limiting itself.
func withDefaultRateLimits() serverOption {
	return func(s *setup) { s.cfg.RateLimits = httpx.DefaultRateLimits() }
}

// withTenantSettings writes the tenant-config.yml of key.
func withTenantSettings(key, yaml string) serverOption {
	return func(s *setup) { s.settings[key] = yaml }
}

// withTfaUsers enables TFA on the seeded users.
func withTfaUsers() serverOption {
	return func(s *setup) { s.tfaUsers = true }
}

func withOtpService(url string) serverOption {
	return func(s *setup) { s.cfg.OtpServiceURL = url }
}

func withTokenStore(kind, redisURL string) serverOption {
	return func(s *setup) {
		s.cfg.TokenStore = kind
		s.cfg.RedisURL = redisURL
	}
}

// generousLimits prevent rapid test requests from being throttled.
func generousLimits() httpx.RateLimits {
	l := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	return httpx.RateLimits{Strict: l, Moderate: l, Public: l}
}

// setupAuthServer starts the application with a fresh database and seeds
// the acme tenant with roles, permissions, an admin, a user and a client.
func setupAuthServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	dir := t.TempDir()

	s := &setup{
		cfg: app.Config{
			Issuer:               testIssuer,
			Algorithm:            "EdDSA",
			NumKeys:              1,
			KeyStorageMode:       app.KeyStorageEphemeral,
			DatabaseFile:         filepath.Join(dir, "warden.db"),
			PepperFile:           filepath.Join(dir, "pepper"),
			ConfigRoot:           filepath.Join(dir, "config"),
			TokenStore:           app.TokenStoreMemory,
			ReuseRefreshToken:    true,
			TenantCacheTTL:       time.Minute,
			Env:                  "test",
			LogLevel:             "error",
			LogFormat:            "text",
			LogOutput:            io.Discard,
			ShutdownGracePeriod:  time.Second,
			HousekeepingInterval: time.Hour,
			RateLimits:           generousLimits(),
		},
		settings: map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	seedDocuments(t, s)

	a, err := app.New(s.cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	ts := &testServer{URL: srv.URL, App: a}
	ts.ClientSecret = seedAccounts(t, a, s.tfaUsers)
	return ts
}

func seedDocuments(t *testing.T, s *setup) {
	t.Helper()
	ctx := context.Background()

	docs, err := filesystem.New(s.cfg.ConfigRoot)
	require.NoError(t, err)

	require.NoError(t, docs.Put(ctx, service.PrivilegesPath, []byte(privilegesYAML)))
	require.NoError(t, docs.Put(ctx, tenant.Path(testTenant, service.RolesDocument), []byte(rolesYAML)))
	require.NoError(t, docs.Put(ctx, tenant.Path(testTenant, service.PermissionsDocument), []byte(permissionsYAML)))
	for key, yaml := range s.settings {
		require.NoError(t, docs.Put(ctx, tenant.Path(key, tenant.SettingsDocument), []byte(yaml)))
	}
}

func seedAccounts(t *testing.T, a *app.Application, tfa bool) string {
	t.Helper()
	ctx := tenant.WithKey(context.Background(), testTenant)

	_, err := a.Users.CreateUser(ctx, service.NewUser{
		UserKey:  "u-admin",
		Password: adminPassword,
		RoleKeys: []string{"ROLE_ADMIN"},
		Logins:   []domain.Login{{TypeKey: domain.LoginEmail, Value: adminUsername}},
	})
	require.NoError(t, err)

	_, err = a.Users.CreateUser(ctx, service.NewUser{
		UserKey:    "u-alice",
		Password:   userPassword,
		RoleKeys:   []string{"ROLE_USER"},
		TfaEnabled: tfa,
		Logins: []domain.Login{
			{TypeKey: domain.LoginEmail, Value: "alice@acme.test"},
			{TypeKey: domain.LoginNickname, Value: userUsername},
		},
	})
	require.NoError(t, err)

	_, secret, err := a.Clients.CreateClient(ctx, service.NewClient{
		ClientID:     webClientID,
		Confidential: true,
		Scopes:       clientScopes,
		GrantTypes: []string{
			domain.GrantPassword,
			domain.GrantRefreshToken,
			domain.GrantClientCredentials,
			domain.GrantTfaOtpToken,
		},
	})
	require.NoError(t, err)
	return secret
}

func tenantCtx(key string) context.Context {
	return tenant.WithKey(context.Background(), key)
}

// newResourceServer describes a confidential client that only introspects
// tokens.
func newResourceServer() service.NewClient {
	return service.NewClient{
		ClientID:     "resource",
		Confidential: true,
		GrantTypes:   []string{domain.GrantClientCredentials},
	}
}

// client returns an SDK client of the acme tenant authenticating as the
// seeded web client.
func (s *testServer) client() *authsdk.SDKClient {
	return authsdk.NewSDKClient(s.URL, testTenant, webClientID, s.ClientSecret)
}

// login signs a user in with the password grant.
func (s *testServer) login(t *testing.T, username, password string) *authsdk.Session {
	t.Helper()

	session, challenge, err := s.client().AuthenticateWithPassword(t.Context(), username, password, nil)
	require.NoError(t, err, "login should succeed")
	require.Nil(t, challenge, "login should not require a second factor")
	require.NotNil(t, session)
	return session
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "refresh token should not be empty")
	require.Equal(t, "bearer", resp.TokenType)
	require.Positive(t, resp.ExpiresIn)
	require.Equal(t, "openid profile", resp.Scope)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
