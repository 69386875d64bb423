package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// GrantStatus is the outcome of a grant attempt.
type GrantStatus int

const (
	// GrantNotApplicable means the granter does not handle this grant type.
	GrantNotApplicable GrantStatus = iota
	GrantGranted
	GrantDenied
)

func (s GrantStatus) String() string {
	switch s {
	case GrantGranted:
		return "granted"
	case GrantDenied:
		return "denied"
	default:
		return "not_applicable"
	}
}

// GrantResult is what a TokenGranter produced. Token is set when granted,
// Err when denied. Challenge is set when Token is a TFA pending token.
type GrantResult struct {
	Status    GrantStatus
	Token     *domain.AccessToken
	Challenge *TfaChallenge
	Err       error
}

func Granted(token *domain.AccessToken) GrantResult {
	return GrantResult{Status: GrantGranted, Token: token}
}

func NotApplicable() GrantResult {
	return GrantResult{Status: GrantNotApplicable}
}

func Denied(err error) GrantResult {
	return GrantResult{Status: GrantDenied, Err: err}
}

// TokenGranter handles one or more grant types. The error return is for
// infrastructure faults only; bad requests are Denied results.
type TokenGranter interface {
	Grant(ctx context.Context, req TokenRequest) (GrantResult, error)
}

// deny turns denial errors into a Denied result and passes faults through.
func deny(err error) (GrantResult, error) {
	if IsDenial(err) {
		return Denied(err), nil
	}
	return GrantResult{}, err
}

// CompositeGranter asks each granter in turn; the first one that applies
// decides.
type CompositeGranter struct {
	Granters []TokenGranter
	Metrics  *metrics.Metrics
}

func (g *CompositeGranter) Grant(ctx context.Context, req TokenRequest) (GrantResult, error) {
	for _, granter := range g.Granters {
		res, err := granter.Grant(ctx, req)
		if err != nil {
			return GrantResult{}, err
		}
		switch res.Status {
		case GrantGranted:
			if res.Challenge == nil {
				g.Metrics.TokenIssued(req.GrantType)
			}
			return res, nil
		case GrantDenied:
			g.Metrics.GrantDenied(req.GrantType, denialReason(res.Err))
			slogx.FromContext(ctx).Info("grant denied",
				slog.String("grant_type", req.GrantType),
				slog.String("client_id", req.Client.ClientID),
				slog.Any("reason", res.Err))
			return res, nil
		}
	}

	res := Denied(fmt.Errorf("%w: %q", ErrUnsupportedGrantType, req.GrantType))
	g.Metrics.GrantDenied(req.GrantType, denialReason(res.Err))
	return res, nil
}

func denialReason(err error) string {
	for _, d := range denials {
		if errors.Is(err, d) {
			return d.Error()
		}
	}
	return "unknown"
}

// checkClient rejects clients not registered for grantType.
func checkClient(req TokenRequest, grantType string) error {
	if !req.Client.AllowsGrant(grantType) {
		return fmt.Errorf("%w: %s not allowed", ErrUnauthorizedClient, grantType)
	}
	return nil
}

// requestedScope defaults an empty request to the client's scopes and
// rejects anything the client is not registered for.
func requestedScope(req TokenRequest) ([]string, error) {
	if len(req.Scope) == 0 {
		return slices.Clone(req.Client.Scopes), nil
	}
	for _, s := range req.Scope {
		if !slices.Contains(req.Client.Scopes, s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
	}
	return slices.Clone(req.Scope), nil
}

// PasswordGranter implements the password grant. Users with TFA enabled on
// a tenant with TFA enabled get a pending token instead of a full one.
type PasswordGranter struct {
	Auth     *AuthenticationManager
	Tokens   *TokenService
	Tfa      *TfaChallengeFlow
	Settings SettingsSource
}

func (g *PasswordGranter) Grant(ctx context.Context, req TokenRequest) (GrantResult, error) {
	if req.GrantType != domain.GrantPassword {
		return NotApplicable(), nil
	}
	if err := checkClient(req, domain.GrantPassword); err != nil {
		return Denied(err), nil
	}
	key, err := tenant.Require(ctx)
	if err != nil {
		return GrantResult{}, err
	}
	scope, err := requestedScope(req)
	if err != nil {
		return Denied(err), nil
	}

	p, err := g.Auth.Authenticate(ctx, PasswordCandidate{
		Username: strings.TrimSpace(req.Parameters["username"]),
		Password: req.Parameters["password"],
	})
	if err != nil {
		if IsDenial(err) {
			return Denied(fmt.Errorf("%w: %w", ErrInvalidGrant, ErrAuthenticationFailed)), nil
		}
		return GrantResult{}, err
	}

	authn := &domain.Authentication{
		TenantKey: key,
		Request: domain.OAuth2Request{
			ClientID:   req.Client.ClientID,
			Scope:      scope,
			GrantType:  domain.GrantPassword,
			Parameters: additionalDetails(req.Parameters),
		},
		Principal:   p,
		Authorities: slices.Clone(p.RoleKeys),
	}

	if p.TfaEnabled && g.Tfa != nil {
		settings, err := g.Settings.Settings(ctx)
		if err != nil {
			return GrantResult{}, err
		}
		if settings.Security.TfaEnabled {
			pending, challenge, err := g.Tfa.Issue(ctx, authn)
			if err != nil {
				return deny(err)
			}
			res := Granted(pending)
			res.Challenge = &challenge
			return res, nil
		}
	}

	token, err := g.Tokens.CreateAccessToken(ctx, authn)
	if err != nil {
		return deny(err)
	}
	return Granted(token), nil
}

// RefreshTokenGranter implements the refresh_token grant.
type RefreshTokenGranter struct {
	Tokens *TokenService
}

func (g *RefreshTokenGranter) Grant(ctx context.Context, req TokenRequest) (GrantResult, error) {
	if req.GrantType != domain.GrantRefreshToken {
		return NotApplicable(), nil
	}
	if err := checkClient(req, domain.GrantRefreshToken); err != nil {
		return Denied(err), nil
	}

	value := req.Parameters["refresh_token"]
	if value == "" {
		return Denied(fmt.Errorf("%w: missing refresh_token", ErrInvalidGrant)), nil
	}

	token, err := g.Tokens.RefreshAccessToken(ctx, value, req)
	if err != nil {
		return deny(err)
	}
	return Granted(token), nil
}

// ClientCredentialsGranter implements the client_credentials grant. The
// token belongs to the client alone and never has a refresh token.
type ClientCredentialsGranter struct {
	Tokens *TokenService
}

func (g *ClientCredentialsGranter) Grant(ctx context.Context, req TokenRequest) (GrantResult, error) {
	if req.GrantType != domain.GrantClientCredentials {
		return NotApplicable(), nil
	}
	if err := checkClient(req, domain.GrantClientCredentials); err != nil {
		return Denied(err), nil
	}
	key, err := tenant.Require(ctx)
	if err != nil {
		return GrantResult{}, err
	}
	scope, err := requestedScope(req)
	if err != nil {
		return Denied(err), nil
	}

	token, err := g.Tokens.CreateAccessToken(ctx, &domain.Authentication{
		TenantKey: key,
		Request: domain.OAuth2Request{
			ClientID:   req.Client.ClientID,
			Scope:      scope,
			GrantType:  domain.GrantClientCredentials,
			Parameters: additionalDetails(req.Parameters),
		},
	})
	if err != nil {
		return deny(err)
	}
	return Granted(token), nil
}

// TfaOtpGranter implements the tfa_otp_token grant on top of
// TfaChallengeFlow.Redeem.
type TfaOtpGranter struct {
	Flow *TfaChallengeFlow
}

func (g *TfaOtpGranter) Grant(ctx context.Context, req TokenRequest) (GrantResult, error) {
	if req.GrantType != domain.GrantTfaOtpToken {
		return NotApplicable(), nil
	}
	if err := checkClient(req, domain.GrantTfaOtpToken); err != nil {
		return Denied(err), nil
	}

	token, err := g.Flow.Redeem(ctx, req)
	if err != nil {
		return deny(err)
	}
	return Granted(token), nil
}
