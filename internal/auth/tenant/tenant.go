// Package tenant carries the current tenant through a request and loads the
// tenant's settings.
package tenant

import (
	"context"
	"errors"
	"strings"
)

// ErrTenantNotProvided is returned by tenant-scoped operations when the
// context carries no tenant.
var ErrTenantNotProvided = errors.New("tenant_not_provided")

type ctxKey struct{}

// WithKey returns a copy of ctx scoped to tenant key.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(key))
}

// Key returns the tenant of ctx, or "" when none is set.
func Key(ctx context.Context) string {
	k, _ := ctx.Value(ctxKey{}).(string)
	return k
}

// Require returns the tenant of ctx or ErrTenantNotProvided.
func Require(ctx context.Context) (string, error) {
	k := Key(ctx)
	if k == "" {
		return "", ErrTenantNotProvided
	}
	return k, nil
}

// Equal compares tenant keys the way document paths do, ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Path returns the document path of name under the tenant's directory.
func Path(key, name string) string {
	return "/tenants/" + strings.ToUpper(key) + "/" + name
}
