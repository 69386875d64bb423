package http

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	Clients ClientAuthenticator
	Granter service.TokenGranter

	// Now defaults to time.Now.
	Now func() time.Time
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access and refresh tokens using OAuth2 grant types (password, refresh_token, client_credentials, tfa_otp_token).
//	@Description	When the user has two factor authentication enabled the password grant returns a pending token and the X-Tfa-Otp: required header.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			X-Tenant				header		string					true	"Tenant key"
//	@Param			grant_type				formData	string					true	"Grant type"	Enums(password, refresh_token, client_credentials, tfa_otp_token)
//	@Param			username				formData	string					false	"Username or any login (password grant)"
//	@Param			password				formData	string					false	"Password (password grant)"
//	@Param			refresh_token			formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			tfa_access_token		formData	string					false	"Pending token (tfa_otp_token grant)"
//	@Param			tfa_access_token_type	formData	string					false	"Pending token type, bearer (tfa_otp_token grant)"
//	@Param			otp						formData	string					false	"One-time code (tfa_otp_token grant)"
//	@Param			client_id				formData	string					false	"Client identifier when not using HTTP Basic"
//	@Param			client_secret			formData	string					false	"Client secret when not using HTTP Basic"
//	@Param			scope					formData	string					false	"Space-delimited list of scopes"
//	@Success		200						{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, scope and token claims"
//	@Failure		400						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200						{string}	Cache-Control			"no-store"
//	@Header			200						{string}	Pragma					"no-cache"
//	@Header			200						{string}	X-Tfa-Otp				"required, for pending tokens"
//	@Header			200						{string}	X-Tfa-Otp-Channel		"channel the code was sent to"
//	@Security		BasicAuth
//	@Router			/v1/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	if !isFormRequest(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	// 3. Authenticate the client
	client, ok := authenticateClient(w, r, h.Clients)
	if !ok {
		return
	}

	grantType := strings.TrimSpace(r.PostFormValue("grant_type"))
	if grantType == "" {
		authsdk.ErrInvalidRequest.WithDescription("grant_type is required").WriteError(w)
		return
	}

	// 4. Hand the request to the granters
	res, err := h.Granter.Grant(ctx, service.TokenRequest{
		Client:     client,
		GrantType:  grantType,
		Scope:      httpx.SplitScope(r.PostFormValue("scope")),
		Parameters: tokenParameters(r),
	})
	if err != nil {
		log.Error("token grant failed", "grant_type", grantType, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	if res.Status != service.GrantGranted {
		writeError(w, r, "token grant denied", res.Err)
		return
	}

	if res.Challenge != nil {
		w.Header().Set(authsdk.TfaOtpHeader, "required")
		w.Header().Set(authsdk.TfaOtpChannelHeader, res.Challenge.Channel)
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res.Token, h.now()))
}

func (h *TokenHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// tokenParameters flattens the form, leaving out the client credentials.
func tokenParameters(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if k == "client_id" || k == "client_secret" || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}
	return params
}

// hiddenClaims are never echoed in token responses.
var hiddenClaims = []string{domain.ClaimTfaOtpHash, domain.ClaimTfaOtpID}

// tokenResponse renders token with its additional information flattened
// next to the standard members.
func tokenResponse(token *domain.AccessToken, now time.Time) authsdk.TokenResponse {
	resp := authsdk.TokenResponse{
		AccessToken: token.Value,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   token.ExpiresIn(now),
		Scope:       strings.Join(token.Scope, " "),
	}
	if token.RefreshToken != nil {
		resp.RefreshToken = token.RefreshToken.Value
	}
	for k, v := range token.AdditionalInformation {
		if slices.Contains(hiddenClaims, k) {
			continue
		}
		if resp.Extra == nil {
			resp.Extra = make(map[string]any, len(token.AdditionalInformation))
		}
		resp.Extra[k] = v
	}
	return resp
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}
