package service

import "errors"

// OAuth2 denial reasons. Their messages are the RFC 6749 error codes so the
// HTTP layer can pass them through.
var (
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
)

var (
	ErrClientRegistrationNotFound = errors.New("client registration not found")
	ErrAuthenticationFailed       = errors.New("bad credentials")

	ErrUserNotFound    = errors.New("user not found")
	ErrRoleNotFound    = errors.New("role not found")
	ErrRoleExists      = errors.New("role already exists")
	ErrUnsupportedMode = errors.New("unsupported permissions mode")

	ErrOtpServiceUnavailable = errors.New("no otp service configured")
)

// denials are the errors a grant turns into a structured denial instead of
// failing the request.
var denials = []error{
	ErrInvalidGrant,
	ErrInvalidToken,
	ErrInvalidScope,
	ErrInvalidClient,
	ErrUnauthorizedClient,
	ErrUnsupportedGrantType,
	ErrClientRegistrationNotFound,
	ErrAuthenticationFailed,
}

// IsDenial reports whether err is an expected OAuth2 denial rather than an
// infrastructure fault.
func IsDenial(err error) bool {
	for _, d := range denials {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}
