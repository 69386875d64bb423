package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/filesystem"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// bearerTokens maps token values to authentications.
type bearerTokens map[string]*domain.Authentication

func (b bearerTokens) LoadAuthentication(_ context.Context, value string) (*domain.Authentication, error) {
	a, ok := b[value]
	if !ok {
		return nil, service.ErrInvalidToken
	}
	return a, nil
}

var testBearers = bearerTokens{
	"admin": {
		TenantKey:   "acme",
		Request:     domain.OAuth2Request{ClientID: "console"},
		Principal:   &domain.Principal{Username: "root"},
		Authorities: []string{"ROLE_ADMIN"},
	},
	"user": {
		TenantKey:   "acme",
		Request:     domain.OAuth2Request{ClientID: "console"},
		Principal:   &domain.Principal{Username: "alice"},
		Authorities: []string{"ROLE_USER"},
	},
	"globex-admin": {
		TenantKey:   "globex",
		Request:     domain.OAuth2Request{ClientID: "console"},
		Principal:   &domain.Principal{Username: "mallory"},
		Authorities: []string{"ROLE_ADMIN"},
	},
}

func adminMux(t *testing.T) http.Handler {
	t.Helper()

	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)
	roles := &RolesHandler{RolesService: &service.RolesService{
		Permissions: &service.ConfigBackedSource{Docs: docs},
	}}

	mws := adminChain(&TokenAuthenticator{Tokens: testBearers}, httpx.DefaultRateLimits().Public)
	mux := http.NewServeMux()
	mux.Handle("GET /v1/roles", httpx.Chain(http.HandlerFunc(roles.HandleList), mws...))
	mux.Handle("POST /v1/roles", httpx.Chain(http.HandlerFunc(roles.HandleCreate), mws...))
	mux.Handle("PUT /v1/roles/{key}", httpx.Chain(http.HandlerFunc(roles.HandleUpdate), mws...))
	mux.Handle("DELETE /v1/roles/{key}", httpx.Chain(http.HandlerFunc(roles.HandleDelete), mws...))
	mux.Handle("GET /v1/roles/{key}/permissions", httpx.Chain(http.HandlerFunc(roles.HandleGetPermissions), mws...))
	mux.Handle("PUT /v1/roles/{key}/permissions", httpx.Chain(http.HandlerFunc(roles.HandleUpdatePermissions), mws...))
	return httpx.Chain(mux, TenantMiddleware())
}

func adminRequest(t *testing.T, h http.Handler, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authsdk.TenantHeader, "acme")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminChain_Rejections(t *testing.T) {
	h := adminMux(t)

	rec := adminRequest(t, h, http.MethodGet, "/v1/roles", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = adminRequest(t, h, http.MethodGet, "/v1/roles", "expired", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = adminRequest(t, h, http.MethodGet, "/v1/roles", "user", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = adminRequest(t, h, http.MethodGet, "/v1/roles", "globex-admin", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, authsdk.ErrorCodeAccessDenied, decodeError(t, rec).Error)

	req := httptest.NewRequest(http.MethodGet, "/v1/roles", nil)
	req.Header.Set("Authorization", "Bearer admin")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, authsdk.ErrorCodeTenantNotProvided, decodeError(t, rec).Error)
}

func TestRolesHandler_Lifecycle(t *testing.T) {
	h := adminMux(t)

	rec := adminRequest(t, h, http.MethodPost, "/v1/roles", "admin",
		authsdk.CreateRoleRequest{Key: "ROLE_SUPPORT", Description: "support desk"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created authsdk.RoleInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "ROLE_SUPPORT", created.Key)
	require.Equal(t, "root", created.CreatedBy)
	require.NotNil(t, created.CreatedAt)

	rec = adminRequest(t, h, http.MethodPost, "/v1/roles", "admin",
		authsdk.CreateRoleRequest{Key: "ROLE_SUPPORT"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = adminRequest(t, h, http.MethodPost, "/v1/roles", "admin", authsdk.CreateRoleRequest{Key: "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = adminRequest(t, h, http.MethodPut, "/v1/roles/ROLE_SUPPORT/permissions", "admin",
		authsdk.UpdateRolePermissionsRequest{Permissions: []authsdk.PermissionInfo{
			{App: "billing", Privilege: "INVOICE.READ"},
			{App: "billing", Privilege: "INVOICE.DELETE", Disabled: true},
		}})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = adminRequest(t, h, http.MethodPost, "/v1/roles", "admin",
		authsdk.CreateRoleRequest{Key: "ROLE_SUPPORT_LEAD", BasedOn: "ROLE_SUPPORT"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = adminRequest(t, h, http.MethodGet, "/v1/roles/ROLE_SUPPORT_LEAD/permissions", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var perms authsdk.RolePermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perms))
	require.Equal(t, "ROLE_SUPPORT_LEAD", perms.Role)
	require.Equal(t, []authsdk.PermissionInfo{
		{App: "billing", Privilege: "INVOICE.DELETE", Disabled: true},
		{App: "billing", Privilege: "INVOICE.READ"},
	}, perms.Permissions)

	rec = adminRequest(t, h, http.MethodPut, "/v1/roles/ROLE_SUPPORT", "admin",
		authsdk.UpdateRoleRequest{Description: "first line support"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = adminRequest(t, h, http.MethodGet, "/v1/roles", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list authsdk.ListRolesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Roles, 2)
	require.Equal(t, "ROLE_SUPPORT", list.Roles[0].Key)
	require.Equal(t, "first line support", list.Roles[0].Description)

	rec = adminRequest(t, h, http.MethodDelete, "/v1/roles/ROLE_SUPPORT", "admin", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = adminRequest(t, h, http.MethodDelete, "/v1/roles/ROLE_SUPPORT", "admin", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = adminRequest(t, h, http.MethodPut, "/v1/roles/ROLE_GONE", "admin", authsdk.UpdateRoleRequest{})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeSweeper struct {
	app    string
	active []string
}

func (f *fakeSweeper) Sweep(_ context.Context, app string, active []string) (service.SweepReport, error) {
	f.app, f.active = app, active
	return service.SweepReport{Tenants: 3, Failed: []string{"globex"}}, nil
}

type migratorFunc func(ctx context.Context) error

func (f migratorFunc) MigrateToDatabase(ctx context.Context) error { return f(ctx) }

func TestPermissionsHandler(t *testing.T) {
	sweeper := &fakeSweeper{}
	migrated := 0
	h := &PermissionsHandler{
		Sweeper: sweeper,
		Migrator: migratorFunc(func(context.Context) error {
			migrated++
			if migrated > 1 {
				return errors.New("database locked")
			}
			return nil
		}),
	}
	mws := adminChain(&TokenAuthenticator{Tokens: testBearers}, httpx.DefaultRateLimits().Public)
	mux := http.NewServeMux()
	mux.Handle("POST /v1/permissions/migrate", httpx.Chain(http.HandlerFunc(h.HandleMigrate), mws...))
	mux.Handle("POST /v1/privileges/sweep", httpx.Chain(http.HandlerFunc(h.HandleSweep), mws...))
	handler := httpx.Chain(mux, TenantMiddleware())

	rec := adminRequest(t, handler, http.MethodPost, "/v1/permissions/migrate", "admin", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = adminRequest(t, handler, http.MethodPost, "/v1/permissions/migrate", "admin", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = adminRequest(t, handler, http.MethodPost, "/v1/privileges/sweep", "admin",
		authsdk.SweepRequest{App: "billing", Privileges: []string{"INVOICE.READ"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report authsdk.SweepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, authsdk.SweepResponse{Tenants: 3, Failed: []string{"globex"}}, report)
	require.Equal(t, "billing", sweeper.app)
	require.Equal(t, []string{"INVOICE.READ"}, sweeper.active)

	rec = adminRequest(t, handler, http.MethodPost, "/v1/privileges/sweep", "admin", authsdk.SweepRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
