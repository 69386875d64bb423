package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is an OAuth2 client of one tenant of the warden server. Token
// endpoint calls authenticate with ClientID and ClientSecret over HTTP Basic.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	Tenant       string
	ClientID     string
	ClientSecret string
}

// NewSDKClient creates a client for tenant authenticating as clientID.
// Public clients pass an empty secret.
func NewSDKClient(baseURL, tenant, clientID, clientSecret string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Tenant:       tenant,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// AuthenticateWithPassword signs a user in and returns a session. When the
// user has TFA enabled the session is nil and the returned challenge must be
// completed with CompleteTfa.
func (c *SDKClient) AuthenticateWithPassword(
	ctx context.Context,
	username, password string,
	scopes []string,
) (*Session, *TfaChallenge, error) {
	tokenResp, challenge, err := c.PasswordGrant(ctx, username, password, scopes)
	if err != nil {
		return nil, nil, err
	}
	if challenge != nil {
		return nil, challenge, nil
	}
	return newSession(c, tokenResp), nil, nil
}

// CompleteTfa redeems a pending token with the one-time code the user
// received and returns a session.
func (c *SDKClient) CompleteTfa(ctx context.Context, challenge TfaChallenge, otp string) (*Session, error) {
	tokenResp, err := c.TfaOtpGrant(ctx, challenge.PendingToken, otp)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithClientCredentials creates a session for the client itself.
// It has no refresh token; the session re-authenticates when the token expires.
func (c *SDKClient) AuthenticateWithClientCredentials(ctx context.Context, scopes []string) (*Session, error) {
	tokenResp, err := c.ClientCredentialsGrant(ctx, scopes)
	if err != nil {
		return nil, err
	}
	s := newSession(c, tokenResp)
	s.clientScopes = scopes
	return s, nil
}

// NewSessionFromTokens creates a session from tokens obtained earlier.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}
