package otp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/tenant"
)

// fakeOtpServer keeps one code per request id.
type fakeOtpServer struct {
	codes   map[string]string
	tenants []string
}

func (f *fakeOtpServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /otp", func(w http.ResponseWriter, r *http.Request) {
		f.tenants = append(f.tenants, r.Header.Get(TenantHeader))
		var in sendRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Destination == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.codes["req-1"] = "123456"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(sendResponse{ID: "req-1"})
	})
	mux.HandleFunc("POST /otp/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		code, ok := f.codes[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var in verifyRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(verifyResponse{Valid: in.Otp == code})
	})
	return mux
}

func newRemote(t *testing.T) (*RemoteService, *fakeOtpServer) {
	t.Helper()
	f := &fakeOtpServer{codes: map[string]string{}}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewRemoteService(srv.URL + "/"), f
}

func TestRemoteServiceRoundTrip(t *testing.T) {
	s, f := newRemote(t)
	ctx := tenant.WithKey(context.Background(), "acme")

	id, err := s.SendOtp(ctx, "email", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "req-1", id)
	require.Equal(t, []string{"acme"}, f.tenants)

	ok, err := s.VerifyOtp(ctx, id, "123456")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.VerifyOtp(ctx, id, "000000")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoteServiceUnknownIDIsInvalid(t *testing.T) {
	s, _ := newRemote(t)

	ok, err := s.VerifyOtp(context.Background(), "missing", "123456")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoteServiceStatusError(t *testing.T) {
	s, _ := newRemote(t)

	_, err := s.SendOtp(context.Background(), "email", "")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Equal(t, "bad request", se.Body)
}

func TestRemoteServiceEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	_, err := NewRemoteService(srv.URL).SendOtp(context.Background(), "email", "alice@example.com")
	require.Error(t, err)
}
