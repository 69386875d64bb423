package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// AuthenticationLoader resolves an access token into its authentication.
type AuthenticationLoader interface {
	LoadAuthentication(ctx context.Context, value string) (*domain.Authentication, error)
}

// TokenAuthenticator accepts the server's own access tokens as bearer
// tokens. Pending and expired tokens are rejected by the loader.
type TokenAuthenticator struct {
	Tokens AuthenticationLoader
}

var _ httpx.BearerAuthenticator = (*TokenAuthenticator)(nil)

func (a *TokenAuthenticator) AuthenticateBearer(ctx context.Context, token string) (httpx.Auth, error) {
	authn, err := a.Tokens.LoadAuthentication(ctx, token)
	if err != nil {
		return httpx.Auth{}, err
	}
	return httpx.Auth{
		Subject:     authn.Name(),
		ClientID:    authn.Request.ClientID,
		Tenant:      authn.TenantKey,
		Scope:       authn.Request.Scope,
		Authorities: authn.Authorities,
	}, nil
}

// ClientAuthenticator checks the credentials a client presents.
type ClientAuthenticator interface {
	Authenticate(ctx context.Context, clientID, secret string) (domain.Client, error)
}

// clientCredentials reads HTTP Basic credentials, falling back to the
// client_id and client_secret form fields. Basic credentials are form
// encoded (RFC 6749 2.3.1).
func clientCredentials(r *http.Request) (id, secret string, ok bool) {
	if user, pass, basic := r.BasicAuth(); basic {
		id, err := url.QueryUnescape(user)
		if err != nil {
			return "", "", false
		}
		secret, err := url.QueryUnescape(pass)
		if err != nil {
			return "", "", false
		}
		return id, secret, id != ""
	}
	id = strings.TrimSpace(r.PostFormValue("client_id"))
	return id, r.PostFormValue("client_secret"), id != ""
}

// authenticateClient answers invalid_client itself and reports false when
// the client could not be authenticated.
func authenticateClient(w http.ResponseWriter, r *http.Request, clients ClientAuthenticator) (domain.Client, bool) {
	id, secret, ok := clientCredentials(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="warden"`)
		authsdk.ErrInvalidClient.WithDescription("client authentication required").WriteError(w)
		return domain.Client{}, false
	}
	client, err := clients.Authenticate(r.Context(), id, secret)
	if err != nil {
		writeError(w, r, "client authentication failed", err)
		return domain.Client{}, false
	}
	return client, true
}
