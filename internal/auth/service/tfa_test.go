package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/stateless"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
)

const (
	alicePassword = "correct horse battery staple"
	aliceOtp      = "483920"
)

type sentOtp struct {
	channel, destination, code string
}

// recordingSender keeps the codes it was asked to deliver.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentOtp
}

func (s *recordingSender) Send(_ context.Context, channel, destination, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentOtp{channel, destination, code})
	return nil
}

// fakeOtpService accepts one code for every id it hands out.
type fakeOtpService struct {
	code string
	sent []sentOtp
}

func (s *fakeOtpService) SendOtp(_ context.Context, channel, destination string) (string, error) {
	s.sent = append(s.sent, sentOtp{channel: channel, destination: destination})
	return "otp-1", nil
}

func (s *fakeOtpService) VerifyOtp(_ context.Context, id, otp string) (bool, error) {
	return id == "otp-1" && otp == s.code, nil
}

type tfaFixture struct {
	*tokenFixture
	users    *fakeUsers
	sender   *recordingSender
	otp      *fakeOtpService
	flow     *TfaChallengeFlow
	password *PasswordGranter
	redeem   *TfaOtpGranter
}

func newTfaFixture(t *testing.T) *tfaFixture {
	t.Helper()

	tf := newTokenFixture(t)
	tf.settings.settings.Security.TfaEnabled = true

	hasher := newPasswordHasher()
	hash, err := hasher.Hash(alicePassword)
	require.NoError(t, err)

	users := &fakeUsers{users: []domain.User{{
		TenantKey:    testTenant,
		UserKey:      "u-alice",
		PasswordHash: hash,
		RoleKeys:     []string{"ROLE_USER"},
		Activated:    true,
		TfaEnabled:   true,
		Logins: []domain.Login{
			{TypeKey: domain.LoginEmail, Value: "alice@example.com"},
			{TypeKey: domain.LoginNickname, Value: "alice"},
		},
	}}}
	otpHasher := cryptox.OTPHasher{Cost: 4}
	otpService := &fakeOtpService{code: aliceOtp}

	auth := &AuthenticationManager{Providers: []AuthenticationProvider{
		&PasswordProvider{Users: users, Hasher: hasher},
		&TfaOtpProvider{Users: users, Hasher: otpHasher},
		&TfaDelegatedProvider{Users: users, Otp: otpService},
	}}

	f := &tfaFixture{
		tokenFixture: tf,
		users:        users,
		sender:       &recordingSender{},
		otp:          otpService,
	}
	f.flow = &TfaChallengeFlow{
		Tokens:   tf.tokens,
		Auth:     auth,
		Settings: tf.settings,
		Generator: OtpGeneratorFunc(func(*domain.Principal, time.Time) (string, error) {
			return aliceOtp, nil
		}),
		Hasher:     otpHasher,
		Sender:     f.sender,
		OtpService: otpService,
	}
	f.password = &PasswordGranter{Auth: auth, Tokens: tf.tokens, Tfa: f.flow, Settings: tf.settings}
	f.redeem = &TfaOtpGranter{Flow: f.flow}
	return f
}

func (f *tfaFixture) signIn(t *testing.T, ctx context.Context) GrantResult {
	t.Helper()

	res, err := f.password.Grant(ctx, TokenRequest{
		Client:    webClient(),
		GrantType: domain.GrantPassword,
		Parameters: map[string]string{
			"grant_type": domain.GrantPassword,
			"username":   "alice",
			"password":   alicePassword,
		},
	})
	require.NoError(t, err)
	require.Equal(t, GrantGranted, res.Status, "sign in: %v", res.Err)
	return res
}

func redeemRequest(pending, otp string) TokenRequest {
	return TokenRequest{
		Client:    webClient(),
		GrantType: domain.GrantTfaOtpToken,
		Parameters: map[string]string{
			"tfa_access_token":      pending,
			"tfa_access_token_type": "bearer",
			"otp":                   otp,
		},
	}
}

func TestTfaEmbeddedRedemption(t *testing.T) {
	f := newTfaFixture(t)
	ctx := tenantCtx()

	res := f.signIn(t, ctx)
	require.NotNil(t, res.Challenge)
	require.Equal(t, TfaChallenge{Channel: domain.OtpChannelEmail, Strategy: domain.TfaStrategyEmbedded}, *res.Challenge)
	require.Equal(t, []sentOtp{{domain.OtpChannelEmail, "alice@example.com", aliceOtp}}, f.sender.sent)

	pending := res.Token
	require.True(t, pending.IsTfaPending())
	require.Nil(t, pending.RefreshToken)
	require.Equal(t, f.clock.Now().Add(DefaultTfaAccessTokenValidity), pending.ExpiresAt)
	require.NotContains(t, pending.AdditionalInformation, domain.ClaimRoleKey)
	require.NotContains(t, pending.AdditionalInformation, domain.ClaimLogins)

	cl, err := f.codec.Decode(pending.Value)
	require.NoError(t, err)
	require.Empty(t, cl.Authorities)

	// A pending token is not a session.
	_, err = f.tokens.LoadAuthentication(ctx, pending.Value)
	require.ErrorIs(t, err, ErrInvalidToken)

	denied, err := f.redeem.Grant(ctx, redeemRequest(pending.Value, "000000"))
	require.NoError(t, err)
	require.Equal(t, GrantDenied, denied.Status)
	require.ErrorIs(t, denied.Err, ErrInvalidGrant)
	require.ErrorIs(t, denied.Err, ErrAuthenticationFailed)

	granted, err := f.redeem.Grant(ctx, redeemRequest(pending.Value, aliceOtp))
	require.NoError(t, err)
	require.Equal(t, GrantGranted, granted.Status, "redeem: %v", granted.Err)
	require.Nil(t, granted.Challenge)
	require.False(t, granted.Token.IsTfaPending())
	require.Equal(t, "ROLE_USER", granted.Token.AdditionalInformation[domain.ClaimRoleKey])
	require.NotNil(t, granted.Token.RefreshToken)

	authn, err := f.tokens.LoadAuthentication(ctx, granted.Token.Value)
	require.NoError(t, err)
	require.Equal(t, domain.GrantTfaOtpToken, authn.Request.GrantType)
	require.Equal(t, "u-alice", authn.Principal.UserKey)
	require.Equal(t, []string{"ROLE_USER"}, authn.Authorities)
}

func TestTfaPendingTokenRejectedByStatelessStore(t *testing.T) {
	f := newTfaFixture(t)
	f.tokens.Store = stateless.NewTokenStore(f.codec)
	ctx := tenantCtx()

	res := f.signIn(t, ctx)
	_, err := f.tokens.LoadAuthentication(ctx, res.Token.Value)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTfaDisabledIssuesFullToken(t *testing.T) {
	f := newTfaFixture(t)
	f.settings.settings.Security.TfaEnabled = false

	res := f.signIn(t, tenantCtx())
	require.Nil(t, res.Challenge)
	require.False(t, res.Token.IsTfaPending())
	require.Empty(t, f.sender.sent)
}

func TestTfaChannel(t *testing.T) {
	t.Run("tenant default", func(t *testing.T) {
		f := newTfaFixture(t)
		f.settings.settings.Security.TfaDefaultOtpChannel = domain.OtpChannelSMS
		f.users.users[0].Logins = append(f.users.users[0].Logins,
			domain.Login{TypeKey: domain.LoginMsisdn, Value: "+61400000000"})

		res := f.signIn(t, tenantCtx())
		require.Equal(t, domain.OtpChannelSMS, res.Challenge.Channel)
		require.Equal(t, "+61400000000", f.sender.sent[0].destination)
	})

	t.Run("user preference wins", func(t *testing.T) {
		f := newTfaFixture(t)
		f.settings.settings.Security.TfaDefaultOtpChannel = domain.OtpChannelSMS
		f.users.users[0].TfaOtpChannel = domain.OtpChannelEmail

		res := f.signIn(t, tenantCtx())
		require.Equal(t, domain.OtpChannelEmail, res.Challenge.Channel)
	})

	t.Run("no destination", func(t *testing.T) {
		f := newTfaFixture(t)
		f.users.users[0].TfaOtpChannel = domain.OtpChannelSMS

		res, err := f.password.Grant(tenantCtx(), TokenRequest{
			Client:     webClient(),
			GrantType:  domain.GrantPassword,
			Parameters: map[string]string{"username": "alice", "password": alicePassword},
		})
		require.NoError(t, err)
		require.Equal(t, GrantDenied, res.Status)
		require.ErrorIs(t, res.Err, ErrInvalidGrant)
	})
}

func TestTfaRedemptionChecks(t *testing.T) {
	f := newTfaFixture(t)
	ctx := tenantCtx()
	pending := f.signIn(t, ctx).Token.Value

	full, err := f.tokens.CreateAccessToken(ctx, aliceAuthentication())
	require.NoError(t, err)
	clientOnly, err := f.tokens.CreateAccessToken(ctx, &domain.Authentication{
		TenantKey: testTenant,
		Request:   domain.OAuth2Request{ClientID: "web", GrantType: domain.GrantClientCredentials},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		ctx     context.Context
		req     func() TokenRequest
		wantErr error
	}{
		{
			name: "token type",
			req: func() TokenRequest {
				r := redeemRequest(pending, aliceOtp)
				r.Parameters["tfa_access_token_type"] = "mac"
				return r
			},
			wantErr: ErrInvalidGrant,
		},
		{
			name:    "malformed token",
			req:     func() TokenRequest { return redeemRequest("garbage", aliceOtp) },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "other tenant",
			ctx:     tenant.WithKey(context.Background(), "globex"),
			req:     func() TokenRequest { return redeemRequest(pending, aliceOtp) },
			wantErr: ErrInvalidGrant,
		},
		{
			name:    "no user",
			req:     func() TokenRequest { return redeemRequest(clientOnly.Value, aliceOtp) },
			wantErr: ErrInvalidGrant,
		},
		{
			name:    "no otp proof",
			req:     func() TokenRequest { return redeemRequest(full.Value, aliceOtp) },
			wantErr: ErrInvalidGrant,
		},
		{
			name: "other client",
			req: func() TokenRequest {
				r := redeemRequest(pending, aliceOtp)
				r.Client.ClientID = "mobile"
				return r
			},
			wantErr: ErrInvalidGrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.ctx
			if c == nil {
				c = ctx
			}
			res, err := f.redeem.Grant(c, tt.req())
			require.NoError(t, err)
			require.Equal(t, GrantDenied, res.Status)
			require.ErrorIs(t, res.Err, tt.wantErr)
		})
	}

	// Tenant keys compare case-insensitively.
	res, err := f.redeem.Grant(tenant.WithKey(context.Background(), "ACME"), redeemRequest(pending, aliceOtp))
	require.NoError(t, err)
	require.Equal(t, GrantGranted, res.Status, "redeem: %v", res.Err)
}

func TestTfaExpiredPendingToken(t *testing.T) {
	f := newTfaFixture(t)
	ctx := tenantCtx()
	pending := f.signIn(t, ctx).Token.Value

	f.clock.Advance(DefaultTfaAccessTokenValidity)
	res, err := f.redeem.Grant(ctx, redeemRequest(pending, aliceOtp))
	require.NoError(t, err)
	require.Equal(t, GrantDenied, res.Status)
	require.ErrorIs(t, res.Err, ErrInvalidToken)
}

func TestTfaPendingValidity(t *testing.T) {
	f := newTfaFixture(t)
	c := webClient()
	c.TfaAccessTokenValiditySeconds = seconds(60)
	f.clients["web"] = c

	pending := f.signIn(t, tenantCtx()).Token
	require.Equal(t, f.clock.Now().Add(time.Minute), pending.ExpiresAt)
}

func TestTfaDelegatedRedemption(t *testing.T) {
	f := newTfaFixture(t)
	f.settings.settings.Security.TfaOtpStrategy = domain.TfaStrategyDelegated
	ctx := tenantCtx()

	res := f.signIn(t, ctx)
	require.Equal(t, domain.TfaStrategyDelegated, res.Challenge.Strategy)
	require.Empty(t, f.sender.sent)
	require.Equal(t, []sentOtp{{channel: domain.OtpChannelEmail, destination: "alice@example.com"}}, f.otp.sent)
	require.Equal(t, "otp-1", res.Token.AdditionalInformation[domain.ClaimTfaOtpID])
	require.NotContains(t, res.Token.AdditionalInformation, domain.ClaimTfaOtpHash)

	denied, err := f.redeem.Grant(ctx, redeemRequest(res.Token.Value, "000000"))
	require.NoError(t, err)
	require.Equal(t, GrantDenied, denied.Status)
	require.ErrorIs(t, denied.Err, ErrInvalidGrant)

	granted, err := f.redeem.Grant(ctx, redeemRequest(res.Token.Value, aliceOtp))
	require.NoError(t, err)
	require.Equal(t, GrantGranted, granted.Status, "redeem: %v", granted.Err)
	require.Equal(t, "ROLE_USER", granted.Token.AdditionalInformation[domain.ClaimRoleKey])
}

func TestTfaRedeemLockedUser(t *testing.T) {
	f := newTfaFixture(t)
	ctx := tenantCtx()
	pending := f.signIn(t, ctx).Token.Value

	require.NoError(t, f.users.SetActivated(ctx, testTenant, "u-alice", false))
	res, err := f.redeem.Grant(ctx, redeemRequest(pending, aliceOtp))
	require.NoError(t, err)
	require.Equal(t, GrantDenied, res.Status)
	require.ErrorIs(t, res.Err, ErrInvalidGrant)
}
