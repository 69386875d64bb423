package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// ErrClientExists is returned when a client id is already registered.
var ErrClientExists = errors.New("client already exists")

// ClientService manages the OAuth2 clients of a tenant. Secrets are hashed
// with the same peppered Argon2id as passwords.
type ClientService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
}

var _ ClientLookup = (*ClientService)(nil)

// NewClient describes a client registration.
type NewClient struct {
	ClientID     string
	Confidential bool
	Scopes       []string
	GrantTypes   []string

	AccessTokenValiditySeconds    *int
	RefreshTokenValiditySeconds   *int
	TfaAccessTokenValiditySeconds *int
}

// CreateClient registers a client for the tenant in ctx. Confidential
// clients get a generated secret, returned here and never again.
func (s *ClientService) CreateClient(ctx context.Context, nc NewClient) (domain.Client, string, error) {
	l := slogx.FromContext(ctx)

	key, err := tenant.Require(ctx)
	if err != nil {
		return domain.Client{}, "", err
	}
	nc.ClientID = strings.TrimSpace(nc.ClientID)
	if nc.ClientID == "" {
		return domain.Client{}, "", fmt.Errorf("client id is required")
	}

	var secret, secretHash string
	if nc.Confidential {
		// 256-bit secret, base64url encoded
		secret, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			l.Error("failed to generate client secret", "error", err)
			return domain.Client{}, "", err
		}
		secretHash, err = s.Hasher.Hash(secret)
		if err != nil {
			l.Error("failed to hash client secret", "error", err)
			return domain.Client{}, "", err
		}
	}

	c := domain.Client{
		ID:                            idx.New(),
		TenantKey:                     key,
		ClientID:                      nc.ClientID,
		SecretHash:                    secretHash,
		Scopes:                        nc.Scopes,
		AuthorizedGrantTypes:          nc.GrantTypes,
		AccessTokenValiditySeconds:    nc.AccessTokenValiditySeconds,
		RefreshTokenValiditySeconds:   nc.RefreshTokenValiditySeconds,
		TfaAccessTokenValiditySeconds: nc.TfaAccessTokenValiditySeconds,
	}
	if err := s.Store.Clients().CreateClient(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Client{}, "", fmt.Errorf("%w: %s", ErrClientExists, nc.ClientID)
		}
		l.Error("failed to create client", "error", err)
		return domain.Client{}, "", err
	}

	l.Info("client created successfully", "client_id", c.ClientID, "has_secret", nc.Confidential)
	return c, secret, nil
}

// LookupClient returns the registration of clientID.
func (s *ClientService) LookupClient(ctx context.Context, clientID string) (domain.Client, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return domain.Client{}, err
	}

	c, err := s.Store.Clients().GetClient(ctx, key, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, fmt.Errorf("%w: %s", ErrClientRegistrationNotFound, clientID)
	}
	return c, err
}

// Authenticate checks the client credentials presented at the token
// endpoint. Public clients have no secret and must not send one.
func (s *ClientService) Authenticate(ctx context.Context, clientID, secret string) (domain.Client, error) {
	c, err := s.LookupClient(ctx, clientID)
	if errors.Is(err, ErrClientRegistrationNotFound) {
		return domain.Client{}, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	if err != nil {
		return domain.Client{}, err
	}

	if c.SecretHash == "" {
		if secret != "" {
			return domain.Client{}, fmt.Errorf("%w: public client sent a secret", ErrInvalidClient)
		}
		return c, nil
	}
	if secret == "" || s.Hasher.Verify(secret, c.SecretHash) != nil {
		slogx.FromContext(ctx).Info("client secret verification failed", "client_id", clientID)
		return domain.Client{}, fmt.Errorf("%w: bad client credentials", ErrInvalidClient)
	}
	return c, nil
}

// ListClients returns the tenant's clients.
func (s *ClientService) ListClients(ctx context.Context) ([]domain.Client, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.Store.Clients().ListClients(ctx, key)
}

// DeleteClient removes a client registration.
func (s *ClientService) DeleteClient(ctx context.Context, clientID string) error {
	key, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	err = s.Store.Clients().DeleteClient(ctx, key, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrClientRegistrationNotFound, clientID)
	}
	if err != nil {
		slogx.FromContext(ctx).Error("failed to delete client", "error", err, "client_id", clientID)
		return err
	}

	slogx.FromContext(ctx).Info("client deleted successfully", "client_id", clientID)
	return nil
}
