package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/warden/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// KeyManager owns the signing keys of an instance and the KeySet that
// verifies them. Several keys may be active at once; each signature picks
// one at random.
type KeyManager struct {
	Verifier *Verifier
	KeySet   *KeySet

	algorithm string

	signers []Signer
	mu      sync.RWMutex
}

// KeyManagerOptions configures the KeyManager for a specific use case.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use.
	// Supported values: "RS256", "ES256", "EdDSA"
	Algorithm string

	// Issuer is the issuer claim (iss) that will be validated in tokens.
	Issuer string

	// Audience is the list of audience values (aud) that will be validated.
	// Empty slice means no audience validation.
	Audience []string

	// RSABits is the RSA key size for RS256. Defaults to 4096, minimum 2048.
	RSABits int

	// NumKeys is how many signing keys to generate, between 1 and 10.
	// Defaults to 3.
	NumKeys int
}

func (o *KeyManagerOptions) normalize() error {
	if o.Issuer == "" {
		return fmt.Errorf("jwtx: Issuer is required")
	}
	switch o.Algorithm {
	case AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA:
	default:
		return fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", o.Algorithm)
	}
	if o.NumKeys <= 0 {
		o.NumKeys = 3
	}
	if o.NumKeys > 10 {
		o.NumKeys = 10
	}
	if o.RSABits == 0 {
		o.RSABits = 4096
	}
	return nil
}

// NewEphemeralKeyManager creates a KeyManager whose keys only ever live in
// memory. Every token it signed becomes unverifiable after a restart, so it
// suits tests and single-node development setups.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	km := newKeyManager(opts)
	for i := 0; i < opts.NumKeys; i++ {
		kid, err := generateRandomKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		_, signer, err := generateKey(opts.Algorithm, kid, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}

		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}

func newKeyManager(opts KeyManagerOptions) *KeyManager {
	keyset := NewKeySet()
	return &KeyManager{
		Verifier:  NewVerifier(keyset, opts.Issuer, opts.Audience),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
	}
}

// generateKey creates a fresh private key and returns its PEM with a signer.
func generateKey(algorithm, kid string, rsaBits int) ([]byte, Signer, error) {
	var (
		pemData []byte
		err     error
	)

	switch algorithm {
	case AlgorithmRS256:
		pemData, err = cryptox.GenerateRSAKey(rsaBits)
	case AlgorithmES256:
		pemData, err = cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		pemData, err = cryptox.GenerateEd25519Key()
	default:
		return nil, nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
	if err != nil {
		return nil, nil, err
	}

	signer, err := NewSigner(algorithm, kid, pemData)
	if err != nil {
		return nil, nil, err
	}
	return pemData, signer, nil
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady() && km.NumSigners() > 0
}

// GetSigner returns a randomly selected active signer, nil when none are
// loaded.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// Sign signs claims with one of the active keys.
func (km *KeyManager) Sign(claims Claims) (string, error) {
	s := km.GetSigner()
	if s == nil {
		return "", fmt.Errorf("jwtx: no active signing key")
	}
	return s.Sign(claims)
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner makes signer available for both signing and verification.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("failed to add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// generateRandomKeyID creates a random key identifier using cryptographic entropy.
func generateRandomKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("failed to generate random key ID: %w", err)
	}
	return "warden-" + token, nil
}
