package httpx

import (
	"net/http"
	"slices"
	"strings"
)

// RequireAnyAuthority the caller must hold at least one of the listed
// authorities (role keys).
func RequireAnyAuthority(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, _ := AuthFromContext(r.Context())
			for _, have := range auth.Authorities {
				if slices.Contains(required, have) {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteError(w, http.StatusForbidden, "access_denied", "requires one of: "+strings.Join(required, ", "))
		})
	}
}
