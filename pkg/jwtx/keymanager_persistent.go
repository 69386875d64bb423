package jwtx

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/warden/pkg/idx"
)

// SigningKeyRecord is a signing key as persisted by a KeyStore.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// KeyStore is the persistence the persistent key manager needs. It is kept
// here so jwtx does not depend on the store package.
type KeyStore interface {
	// ListAllSigningKeys returns every key that can still verify tokens.
	ListAllSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// ListActiveSigningKeys returns keys that may still sign.
	ListActiveSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// KeyEncryptor seals private key material at rest.
type KeyEncryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// PersistentKeyManagerOptions configures a KeyManager with persistent key storage.
type PersistentKeyManagerOptions struct {
	KeyManagerOptions

	Store     KeyStore
	Encryptor KeyEncryptor

	// Lifetime is how long a key stays usable for verification after it
	// was created. Refresh tokens signed with it die with it, so it should
	// be at least the longest refresh validity. Defaults to 30 days.
	Lifetime time.Duration
}

// NewPersistentKeyManager loads every stored key into the KeySet, signs with
// the active ones and tops the active set up to NumKeys. Tokens survive
// restarts as long as their key has not expired.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if opts.Encryptor == nil {
		return nil, fmt.Errorf("jwtx: Encryptor is required for persistent key manager")
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 30 * 24 * time.Hour
	}

	allKeys, err := opts.Store.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys from database: %w", err)
	}
	activeKeys, err := opts.Store.ListActiveSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load active keys: %w", err)
	}

	// A key past half its lifetime only verifies, so whatever it signs can
	// still outlive a refresh window before the key itself expires.
	now := time.Now().UTC()
	active := make(map[string]bool, len(activeKeys))
	for _, k := range activeKeys {
		active[k.Kid] = k.ExpiresAt.Sub(now) > opts.Lifetime/2
	}

	km := newKeyManager(opts.KeyManagerOptions)
	for _, rec := range allKeys {
		pemData, err := opts.Encryptor.Decrypt(rec.PrivateKeyEncrypted)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", rec.Kid, err)
		}

		signer, err := NewSigner(rec.Algorithm, rec.Kid, pemData)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to create signer for key %s: %w", rec.Kid, err)
		}

		if active[rec.Kid] {
			err = km.AddSigner(signer)
		} else {
			err = km.KeySet.AddSigner(signer)
		}
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to add key %s: %w", rec.Kid, err)
		}
	}

	for km.NumSigners() < opts.NumKeys {
		kid, err := generateRandomKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		pemData, signer, err := generateKey(opts.Algorithm, kid, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate new key: %w", err)
		}

		sealed, err := opts.Encryptor.Encrypt(pemData)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to encrypt new key: %w", err)
		}

		err = opts.Store.CreateSigningKey(ctx, SigningKeyRecord{
			ID:                  idx.New(),
			Kid:                 kid,
			Algorithm:           opts.Algorithm,
			PrivateKeyEncrypted: sealed,
			CreatedAt:           now,
			ExpiresAt:           now.Add(opts.Lifetime),
		})
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to store new key: %w", err)
		}

		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}
