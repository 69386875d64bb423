package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// TokenRevoker removes an access or refresh token with its counterpart.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, value, clientID string) (bool, error)
}

// RevokeHandler serves POST /v1/oauth2/revoke following RFC 7009. Access
// and refresh tokens are both accepted and revoke their counterpart too.
// Unknown tokens and tokens of other tenants return 200 OK to prevent token
// scanning. A token issued to another client of the tenant is refused.
type RevokeHandler struct {
	Clients ClientAuthenticator
	Tokens  TokenRevoker
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a previously issued access or refresh token together with the token bound to it (RFC 7009).
//	@Description	The endpoint is idempotent and returns 200 OK even for unknown tokens and tokens of other tenants.
//	@Description	A token issued to another client is refused with unauthorized_client.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			X-Tenant		header		string	true	"Tenant key"
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Success		200				"Token revoked (or was already invalid)"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Security		BasicAuth
//	@Router			/v1/oauth2/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	client, ok := authenticateClient(w, r, h.Clients)
	if !ok {
		return
	}

	token := r.PostFormValue("token")
	if token == "" {
		authsdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	revoked, err := h.Tokens.RevokeToken(ctx, token, client.ClientID)
	if errors.Is(err, service.ErrUnauthorizedClient) {
		log.Warn("token revocation refused", "client_id", client.ClientID)
		authsdk.ErrUnauthorizedClient.WithDescription("token was not issued to this client").WriteError(w)
		return
	}
	if err != nil {
		log.Error("token revocation failed", "client_id", client.ClientID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	log.Info("token revocation", "client_id", client.ClientID, "revoked", revoked)

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
