package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// oauthError maps service errors to their wire form. It returns nil for
// errors that are server faults.
func oauthError(err error) *authsdk.OAuth2Error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotProvided):
		return authsdk.ErrTenantNotProvided
	case errors.Is(err, service.ErrInvalidClient):
		return authsdk.ErrInvalidClient
	case errors.Is(err, service.ErrUnauthorizedClient):
		return authsdk.ErrUnauthorizedClient
	case errors.Is(err, service.ErrUnsupportedGrantType):
		return authsdk.ErrUnsupportedGrantType
	case errors.Is(err, service.ErrInvalidScope):
		return authsdk.ErrInvalidScope
	case errors.Is(err, service.ErrInvalidToken):
		return authsdk.ErrInvalidToken
	case errors.Is(err, service.ErrInvalidGrant),
		errors.Is(err, service.ErrAuthenticationFailed),
		errors.Is(err, service.ErrClientRegistrationNotFound):
		return authsdk.ErrInvalidGrant
	case errors.Is(err, service.ErrRoleNotFound):
		return authsdk.ErrNotFound.WithDescription(err.Error())
	case errors.Is(err, service.ErrRoleExists):
		return authsdk.ErrConflict.WithDescription(err.Error())
	}
	return nil
}

// writeError writes the OAuth2 form of err, or logs it and answers
// server_error when it is a fault.
func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if oe := oauthError(err); oe != nil {
		slogx.FromContext(r.Context()).Info(msg, "error", err)
		oe.WriteError(w)
		return
	}
	slogx.FromContext(r.Context()).Error(msg, "error", err)
	authsdk.ErrServerError.WriteError(w)
}
