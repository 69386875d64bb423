package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/warden/internal/auth/claims"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// OtpService is an external service that owns OTP secrets. Used by the
// delegated strategy.
type OtpService interface {
	SendOtp(ctx context.Context, channel, destination string) (string, error)
	VerifyOtp(ctx context.Context, id, otp string) (bool, error)
}

// OtpSender delivers a code generated here. Used by the embedded strategy.
type OtpSender interface {
	Send(ctx context.Context, channel, destination, code string) error
}

// OtpGenerator makes the code for a principal.
type OtpGenerator interface {
	Generate(p *domain.Principal, now time.Time) (string, error)
}

// OtpGeneratorFunc adapts a function to OtpGenerator.
type OtpGeneratorFunc func(p *domain.Principal, now time.Time) (string, error)

func (f OtpGeneratorFunc) Generate(p *domain.Principal, now time.Time) (string, error) {
	return f(p, now)
}

// OtpHasher hashes codes for the pending token.
type OtpHasher interface {
	Hash(code string) (string, error)
}

// TotpGenerator derives the code from the principal's TOTP secret. Users
// without a secret get six random digits.
type TotpGenerator struct{}

func (TotpGenerator) Generate(p *domain.Principal, now time.Time) (string, error) {
	if p.TfaOtpSecret == "" {
		return cryptox.GenerateNumericCode(6)
	}
	code, err := totp.GenerateCode(p.TfaOtpSecret, now)
	if err != nil {
		return "", fmt.Errorf("generate totp: %w", err)
	}
	return code, nil
}

// TfaChallenge tells the client where the code was sent.
type TfaChallenge struct {
	Channel  string
	Strategy string
}

// TfaChallengeFlow issues TFA pending tokens and redeems them for full
// access tokens.
type TfaChallengeFlow struct {
	Tokens   *TokenService
	Auth     *AuthenticationManager
	Settings SettingsSource

	// Embedded strategy.
	Generator OtpGenerator
	Hasher    OtpHasher
	Sender    OtpSender

	// Delegated strategy.
	OtpService OtpService

	Metrics *metrics.Metrics
}

func (f *TfaChallengeFlow) strategy(s domain.TenantSettings) string {
	if s.Security.TfaOtpStrategy == domain.TfaStrategyDelegated {
		return domain.TfaStrategyDelegated
	}
	return domain.TfaStrategyEmbedded
}

// Issue sends a code to the principal of authn and returns a signed pending
// token carrying the proof needed to redeem it. The pending token is never
// stored.
func (f *TfaChallengeFlow) Issue(ctx context.Context, authn *domain.Authentication) (*domain.AccessToken, TfaChallenge, error) {
	p := authn.Principal
	if p == nil {
		return nil, TfaChallenge{}, fmt.Errorf("%w: tfa needs a user", ErrInvalidGrant)
	}
	now := f.Tokens.now()
	l := slogx.FromContext(ctx).With(slog.String("user_key", p.UserKey))

	settings, err := f.Settings.Settings(ctx)
	if err != nil {
		return nil, TfaChallenge{}, fmt.Errorf("load tenant settings: %w", err)
	}
	challenge := TfaChallenge{
		Channel:  otpChannel(p, settings),
		Strategy: f.strategy(settings),
	}

	destination, ok := p.OtpDestination(challenge.Channel)
	if !ok {
		l.Warn("no login to deliver otp to", slog.String("channel", challenge.Channel))
		return nil, TfaChallenge{}, fmt.Errorf("%w: no %s destination", ErrInvalidGrant, challenge.Channel)
	}

	info := map[string]any{
		domain.ClaimTenant:          authn.TenantKey,
		domain.ClaimUserKey:         p.UserKey,
		domain.ClaimCreateTokenTime: now.UnixMilli(),
		domain.ClaimTfaOtpChannel:   challenge.Channel,
	}
	if details := additionalDetails(authn.Request.Parameters); len(details) > 0 {
		info[domain.ClaimAdditionalDetails] = details
	}

	switch challenge.Strategy {
	case domain.TfaStrategyDelegated:
		if f.OtpService == nil {
			return nil, TfaChallenge{}, ErrOtpServiceUnavailable
		}
		id, err := f.OtpService.SendOtp(ctx, challenge.Channel, destination)
		if err != nil {
			return nil, TfaChallenge{}, fmt.Errorf("request otp: %w", err)
		}
		info[domain.ClaimTfaOtpID] = id
	default:
		code, err := f.Generator.Generate(p, now)
		if err != nil {
			return nil, TfaChallenge{}, err
		}
		hash, err := f.Hasher.Hash(code)
		if err != nil {
			return nil, TfaChallenge{}, err
		}
		if err := f.Sender.Send(ctx, challenge.Channel, destination, code); err != nil {
			return nil, TfaChallenge{}, fmt.Errorf("send otp: %w", err)
		}
		info[domain.ClaimTfaOtpHash] = hash
	}

	client, err := f.Tokens.Clients.LookupClient(ctx, authn.Request.ClientID)
	if err != nil {
		return nil, TfaChallenge{}, err
	}
	ttl, err := f.Tokens.Validity.TfaTTL(ctx, p, &client)
	if err != nil {
		return nil, TfaChallenge{}, fmt.Errorf("resolve tfa validity: %w", err)
	}
	if ttl <= 0 {
		// Pending tokens always expire.
		ttl = DefaultTfaAccessTokenValidity
	}

	pending := &domain.AccessToken{
		Value:                 uuid.NewString(),
		TokenType:             domain.TokenTypeBearer,
		ExpiresAt:             now.Add(ttl),
		Scope:                 slices.Clone(authn.Request.Scope),
		AdditionalInformation: info,
	}

	// The pending token must not grant anything, so it carries no roles.
	bare := *authn
	bare.Authorities = nil

	encoded, err := f.Tokens.Codec.Encode(pending, &bare)
	if err != nil {
		return nil, TfaChallenge{}, err
	}

	f.Metrics.TfaChallenge(challenge.Strategy)
	l.Info("tfa challenge issued",
		slog.String("strategy", challenge.Strategy),
		slog.String("channel", challenge.Channel))
	return encoded, challenge, nil
}

func otpChannel(p *domain.Principal, s domain.TenantSettings) string {
	switch {
	case p.TfaOtpChannel != "":
		return p.TfaOtpChannel
	case s.Security.TfaDefaultOtpChannel != "":
		return s.Security.TfaDefaultOtpChannel
	default:
		return domain.OtpChannelEmail
	}
}

// Redeem exchanges a pending token and the code the user received for a
// full access token.
func (f *TfaChallengeFlow) Redeem(ctx context.Context, req TokenRequest) (*domain.AccessToken, error) {
	l := slogx.FromContext(ctx)

	if !strings.EqualFold(req.Parameters["tfa_access_token_type"], domain.TokenTypeBearer) {
		return nil, fmt.Errorf("%w: unsupported pending token type", ErrInvalidGrant)
	}

	cl, err := f.Tokens.Codec.Decode(req.Parameters["tfa_access_token"])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := cl.ValidateExpiryAt(f.Tokens.now()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	key, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	if !tenant.Equal(cl.StringClaim(domain.ClaimTenant), key) {
		l.Warn("pending token presented to another tenant")
		return nil, fmt.Errorf("%w: tenant mismatch", ErrInvalidGrant)
	}

	username := strings.TrimSpace(cl.UserName)
	if username == "" {
		return nil, fmt.Errorf("%w: pending token has no user", ErrInvalidGrant)
	}

	settings, err := f.Settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tenant settings: %w", err)
	}

	otp := req.Parameters["otp"]
	var cand Candidate
	switch f.strategy(settings) {
	case domain.TfaStrategyDelegated:
		id := cl.StringClaim(domain.ClaimTfaOtpID)
		if id == "" {
			return nil, fmt.Errorf("%w: pending token has no otp id", ErrInvalidGrant)
		}
		cand = TfaDelegatedCandidate{Username: username, Otp: otp, OtpID: id}
	default:
		hash := cl.StringClaim(domain.ClaimTfaOtpHash)
		if hash == "" {
			return nil, fmt.Errorf("%w: pending token has no otp hash", ErrInvalidGrant)
		}
		cand = TfaOtpCandidate{Username: username, Otp: otp, OtpHash: hash}
	}

	if cl.ClientID != req.Client.ClientID {
		l.Warn("pending token presented by another client",
			slog.String("client_id", req.Client.ClientID),
			slog.String("issued_to", cl.ClientID))
		return nil, fmt.Errorf("%w: client mismatch", ErrInvalidGrant)
	}

	p, err := f.Auth.Authenticate(ctx, cand)
	if err != nil {
		if IsDenial(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGrant, ErrAuthenticationFailed)
		}
		return nil, err
	}

	authn := &domain.Authentication{
		TenantKey: key,
		Request: domain.OAuth2Request{
			ClientID:   req.Client.ClientID,
			Scope:      cl.Scope,
			GrantType:  domain.GrantTfaOtpToken,
			Parameters: claims.Authentication(cl).Request.Parameters,
		},
		Principal:   p,
		Authorities: slices.Clone(p.RoleKeys),
	}
	return f.Tokens.CreateAccessToken(ctx, authn)
}
