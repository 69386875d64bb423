package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
)

const tfaSettingsYAML = `
security:
  tfaEnabled: true
`

const delegatedSettingsYAML = `
security:
  tfaEnabled: true
  tfaOtpStrategy: delegated
  tfaDefaultOtpChannel: email
`

// TestTfaEmbedded signs in a TFA user, then redeems the pending token with
// the TOTP code of the user's secret.
func TestTfaEmbedded(t *testing.T) {
	srv := setupAuthServer(t, withTenantSettings(testTenant, tfaSettingsYAML), withTfaUsers())
	client := srv.client()

	session, challenge, err := client.AuthenticateWithPassword(t.Context(), userUsername, userPassword, nil)
	require.NoError(t, err)
	require.Nil(t, session)
	require.NotNil(t, challenge)
	require.Equal(t, "email", challenge.Channel)

	// A pending token is not a session.
	info, err := client.CheckToken(t.Context(), challenge.PendingToken)
	require.NoError(t, err)
	require.False(t, info.Active)

	_, err = client.CompleteTfa(t.Context(), *challenge, "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)

	user, err := srv.App.Users.GetUser(tenant.WithKey(context.Background(), testTenant), "u-alice")
	require.NoError(t, err)
	require.NotEmpty(t, user.TfaOtpSecret)

	// The code was generated when the challenge was issued, which may have
	// been in the previous time step.
	now := time.Now()
	for _, at := range []time.Time{now, now.Add(-30 * time.Second)} {
		code, genErr := totp.GenerateCode(user.TfaOtpSecret, at)
		require.NoError(t, genErr)
		if session, err = client.CompleteTfa(t.Context(), *challenge, code); err == nil {
			break
		}
	}
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NotEmpty(t, session.RefreshToken())

	info, err = client.CheckToken(t.Context(), session.AccessToken())
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "u-alice", info.UserKey)
	require.Equal(t, "ROLE_USER", info.RoleKey)
	require.Equal(t, "tfa_otp_token", info.GrantType)
}

// TestTfaTenantDisabled verifies a TFA user signs in directly when the
// tenant has TFA turned off.
func TestTfaTenantDisabled(t *testing.T) {
	srv := setupAuthServer(t, withTfaUsers())

	session := srv.login(t, userUsername, userPassword)
	require.NotEmpty(t, session.AccessToken())
}

// fakeOtpService is an external OTP service accepting a single code.
type fakeOtpService struct {
	mu    sync.Mutex
	code  string
	sent  []string
	calls int
}

func (f *fakeOtpService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /otp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Channel     string `json:"channel"`
			Destination string `json:"destination"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, r.Header.Get("X-Tenant")+":"+req.Channel+":"+req.Destination)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "otp-1"})
	})
	mux.HandleFunc("POST /otp/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "otp-1" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Otp string `json:"otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"valid": req.Otp == f.code})
	})
	return mux
}

func (f *fakeOtpService) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...), f.calls
}

// TestTfaDelegated lets an external OTP service deliver and verify the code.
func TestTfaDelegated(t *testing.T) {
	otpSvc := &fakeOtpService{code: "424242"}
	otpServer := httptest.NewServer(otpSvc.handler())
	t.Cleanup(otpServer.Close)

	srv := setupAuthServer(t,
		withTenantSettings(testTenant, delegatedSettingsYAML),
		withTfaUsers(),
		withOtpService(otpServer.URL),
	)
	client := srv.client()

	_, challenge, err := client.AuthenticateWithPassword(t.Context(), userUsername, userPassword, nil)
	require.NoError(t, err)
	require.NotNil(t, challenge)
	sent, _ := otpSvc.snapshot()
	require.Equal(t, []string{"acme:email:alice@acme.test"}, sent)

	_, err = client.CompleteTfa(t.Context(), *challenge, "111111")
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)

	session, err := client.CompleteTfa(t.Context(), *challenge, "424242")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken())
	_, calls := otpSvc.snapshot()
	require.Equal(t, 2, calls)
}

// TestTfaPendingTokenOtherTenant verifies a pending token cannot be
// redeemed in another tenant.
func TestTfaPendingTokenOtherTenant(t *testing.T) {
	srv := setupAuthServer(t, withTenantSettings(testTenant, tfaSettingsYAML), withTfaUsers())

	_, challenge, err := srv.client().AuthenticateWithPassword(t.Context(), userUsername, userPassword, nil)
	require.NoError(t, err)
	require.NotNil(t, challenge)

	// The web client is only registered in acme.
	other := authsdk.NewSDKClient(srv.URL, otherTenant, webClientID, srv.ClientSecret)
	_, err = other.CompleteTfa(t.Context(), *challenge, "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidClient)
}

// TestTfaEnrollment enrolls a user after creation and verifies the next
// sign in asks for a code, until TFA is turned off again.
func TestTfaEnrollment(t *testing.T) {
	srv := setupAuthServer(t, withTenantSettings(testTenant, tfaSettingsYAML))
	client := srv.client()
	ctx := tenant.WithKey(context.Background(), testTenant)

	srv.login(t, adminUsername, adminPassword)

	enrollment, err := srv.App.Users.EnrollTfa(ctx, "u-admin", "email")
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.URL)

	session, challenge, err := client.AuthenticateWithPassword(t.Context(), adminUsername, adminPassword, nil)
	require.NoError(t, err)
	require.Nil(t, session)
	require.NotNil(t, challenge)

	require.NoError(t, srv.App.Users.DisableTfa(ctx, "u-admin"))
	srv.login(t, adminUsername, adminPassword)
}
