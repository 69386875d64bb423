package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/tenant"
)

// TenantHeader carries the tenant key on calls to the OTP service.
const TenantHeader = "X-Tenant"

// RemoteService is the client of an external OTP service that generates,
// delivers and verifies codes itself.
//
//	POST {base}/otp               {"channel","destination"} -> 201 {"id"}
//	POST {base}/otp/{id}/verify   {"otp"}                   -> 200 {"valid"}
type RemoteService struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRemoteService returns a client with a 10 second timeout.
func NewRemoteService(baseURL string) *RemoteService {
	return &RemoteService{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type verifyRequest struct {
	Otp string `json:"otp"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// SendOtp asks the service to deliver a code and returns its request id.
func (s *RemoteService) SendOtp(ctx context.Context, channel, destination string) (string, error) {
	var out sendResponse
	err := s.post(ctx, "/otp", sendRequest{Channel: channel, Destination: destination}, http.StatusCreated, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("otp service returned no id")
	}
	return out.ID, nil
}

// VerifyOtp reports whether otp is the code of request id. Unknown and
// expired ids are simply not valid.
func (s *RemoteService) VerifyOtp(ctx context.Context, id, otp string) (bool, error) {
	var out verifyResponse
	err := s.post(ctx, "/otp/"+url.PathEscape(id)+"/verify", verifyRequest{Otp: otp}, http.StatusOK, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return out.Valid, nil
}

// StatusError is an unexpected response from the OTP service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("otp service responded %d: %s", e.StatusCode, e.Body)
}

func (s *RemoteService) post(ctx context.Context, path string, in any, expected int, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := tenant.Key(ctx); key != "" {
		req.Header.Set(TenantHeader, key)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != expected {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
