package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// TenantMiddleware puts the X-Tenant header into the request context and
// the request logger.
func TenantMiddleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(authsdk.TenantHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := slogx.WithTenant(tenant.WithKey(r.Context(), key), key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests without a tenant.
func RequireTenant() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := tenant.Require(r.Context()); err != nil {
				authsdk.ErrTenantNotProvided.WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenantMatch rejects bearer tokens issued for another tenant than
// the one in X-Tenant. It must run after httpx.AuthnMiddleware.
func RequireTenantMatch() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key, err := tenant.Require(ctx)
			if err != nil {
				authsdk.ErrTenantNotProvided.WriteError(w)
				return
			}
			auth, _ := httpx.AuthFromContext(ctx)
			if !tenant.Equal(auth.Tenant, key) {
				slogx.FromContext(ctx).Warn("token tenant mismatch", "token_tenant", auth.Tenant)
				authsdk.ErrAccessDenied.WithDescription("token was issued for another tenant").WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
