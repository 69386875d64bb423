package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// PasswordGrant signs a user in with the password grant. A non-nil
// challenge means the returned token is a TFA pending token, not an access
// token.
func (c *SDKClient) PasswordGrant(
	ctx context.Context,
	username, password string,
	scopes []string,
) (*TokenResponse, *TfaChallenge, error) {
	data := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	resp, err := c.postForm(ctx, "/v1/oauth2/token", data)
	if err != nil {
		return nil, nil, err
	}
	required := strings.EqualFold(resp.Header.Get(TfaOtpHeader), "required")
	channel := resp.Header.Get(TfaOtpChannelHeader)

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, nil, err
	}
	if required {
		return &tokenResp, &TfaChallenge{PendingToken: tokenResp.AccessToken, Channel: channel}, nil
	}
	return &tokenResp, nil, nil
}

// TfaOtpGrant redeems a pending token with the one-time code.
func (c *SDKClient) TfaOtpGrant(ctx context.Context, pendingToken, otp string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":            {"tfa_otp_token"},
		"tfa_access_token":      {pendingToken},
		"tfa_access_token_type": {"bearer"},
		"otp":                   {otp},
	}
	return c.requestToken(ctx, data)
}

// RefreshGrant requests new tokens using a refresh token. Scopes may narrow
// the original grant.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string, scopes ...string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}
	return c.requestToken(ctx, data)
}

// ClientCredentialsGrant requests an access token for the client itself.
// It never comes with a refresh token.
func (c *SDKClient) ClientCredentialsGrant(ctx context.Context, scopes []string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"client_credentials"},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}
	return c.requestToken(ctx, data)
}

// RevokeToken revokes an access token or a refresh token together with the
// token bound to it. Unknown tokens are not an error (RFC 7009).
func (c *SDKClient) RevokeToken(ctx context.Context, token string) error {
	resp, err := c.postForm(ctx, "/v1/oauth2/revoke", url.Values{"token": {token}})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK)
}

// CheckToken introspects an access token.
func (c *SDKClient) CheckToken(ctx context.Context, token string) (*IntrospectionResponse, error) {
	resp, err := c.postForm(ctx, "/v1/oauth2/check_token", url.Values{"token": {token}})
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, "/v1/oauth2/token", data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// postForm sends a client authenticated form post.
func (c *SDKClient) postForm(ctx context.Context, path string, data url.Values) (*http.Response, error) {
	return c.doRequest(ctx, http.MethodPost, path, strings.NewReader(data.Encode()), func(req *http.Request) {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(url.QueryEscape(c.ClientID), url.QueryEscape(c.ClientSecret))
	})
}
