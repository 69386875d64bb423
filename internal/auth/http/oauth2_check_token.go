package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// TokenReader reads issued tokens for introspection.
type TokenReader interface {
	ReadAccessToken(ctx context.Context, value string) (*domain.AccessToken, error)
	LoadAuthentication(ctx context.Context, value string) (*domain.Authentication, error)
}

// CheckTokenHandler serves POST /v1/oauth2/check_token, the introspection
// endpoint of resource servers. Unknown, expired, pending and foreign tenant
// tokens all report active=false.
type CheckTokenHandler struct {
	Clients ClientAuthenticator
	Tokens  TokenReader
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection
//	@Description	Reports whether an access token is active and, if so, who it was issued to.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			X-Tenant	header		string	true	"Tenant key"
//	@Param			token		formData	string	true	"The access token to introspect"
//	@Success		200			{object}	authsdk.IntrospectionResponse
//	@Failure		400			{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401			{object}	authsdk.ErrorResponse	"error, error_description"
//	@Security		BasicAuth
//	@Router			/v1/oauth2/check_token [post].
func (h *CheckTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if !isFormRequest(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	if _, ok := authenticateClient(w, r, h.Clients); !ok {
		return
	}

	value := r.PostFormValue("token")
	if value == "" {
		authsdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	token, err := h.Tokens.ReadAccessToken(ctx, value)
	if err == nil {
		var authn *domain.Authentication
		authn, err = h.Tokens.LoadAuthentication(ctx, value)
		if err == nil {
			if !tenant.Equal(authn.TenantKey, tenant.Key(ctx)) {
				httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{})
				return
			}
			httpx.WriteJSON(w, http.StatusOK, introspection(token, authn))
			return
		}
	}
	if service.IsDenial(err) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{})
		return
	}
	log.Error("token introspection failed", "err", err)
	authsdk.ErrServerError.WriteError(w)
}

func introspection(token *domain.AccessToken, authn *domain.Authentication) authsdk.IntrospectionResponse {
	out := authsdk.IntrospectionResponse{
		Active:      true,
		Scope:       strings.Join(token.Scope, " "),
		ClientID:    authn.Request.ClientID,
		Tenant:      authn.TenantKey,
		Authorities: authn.Authorities,
		GrantType:   authn.Request.GrantType,
	}
	if !token.ExpiresAt.IsZero() {
		out.Exp = token.ExpiresAt.Unix()
	}
	if p := authn.Principal; p != nil {
		out.UserName = p.Username
		out.UserKey = p.UserKey
		out.RoleKey = p.PrimaryRole()
	}
	return out
}
