package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/warden/pkg/slogx"
)

type ctxKey string

const ctxKeyAuth ctxKey = "auth"

// Auth is what a verified bearer token tells handlers about the caller.
type Auth struct {
	Subject     string
	ClientID    string
	Tenant      string
	Scope       []string
	Authorities []string
}

// WithAuth stores the caller in ctx.
func WithAuth(ctx context.Context, a Auth) context.Context {
	return context.WithValue(ctx, ctxKeyAuth, a)
}

// AuthFromContext returns the caller stored by AuthnMiddleware.
func AuthFromContext(ctx context.Context) (Auth, bool) {
	a, ok := ctx.Value(ctxKeyAuth).(Auth)
	return a, ok
}

func logPanic(r *http.Request, rec any) {
	slogx.FromContext(r.Context()).Error("panic serving request", "panic", rec)
}
