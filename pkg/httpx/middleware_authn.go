package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// BearerAuthenticator resolves a raw bearer token into the caller.
type BearerAuthenticator interface {
	AuthenticateBearer(ctx context.Context, token string) (Auth, error)
}

// AuthnMiddleware requires a valid bearer token and stores the caller in the
// request context.
func AuthnMiddleware(a BearerAuthenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			auth, err := a.AuthenticateBearer(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Warn("bearer authentication failed", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(ctx, auth)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
