package jwtx

import (
	"crypto"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet is the set of public keys tokens are verified against, in the
// order they were added. Safe for concurrent use.
type KeySet struct {
	mu   sync.RWMutex
	jwks []JWK
	byID map[string]crypto.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{byID: map[string]crypto.PublicKey{}}
}

// AddSigner publishes the public key of s.
func (k *KeySet) AddSigner(s Signer) error {
	return k.Add(s.PublicJWK())
}

// Add publishes j. A key with the same kid is replaced.
func (k *KeySet) Add(j JWK) error {
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, dup := k.byID[j.Kid]; dup {
		for i := range k.jwks {
			if k.jwks[i].Kid == j.Kid {
				k.jwks[i] = j
			}
		}
	} else {
		k.jwks = append(k.jwks, j)
	}
	k.byID[j.Kid] = pub
	return nil
}

// Get returns the public key with the given kid.
func (k *KeySet) Get(kid string) (crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pub, ok := k.byID[kid]
	if !ok {
		return nil, ErrNoKey
	}
	return pub, nil
}

// PublicJWKS returns a copy of the published keys.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK{}, k.jwks...)}
}

// IsReady reports whether at least one key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.byID) > 0
}

// ResetFromJWKS replaces the keys with those of a fetched key set, e.g. by a
// resource server verifying tokens offline. Nothing changes on error.
func (k *KeySet) ResetFromJWKS(set JWKS) error {
	byID := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, j := range set.Keys {
		pub, err := j.PublicKey()
		if err != nil {
			return err
		}
		byID[j.Kid] = pub
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.byID = byID
	k.jwks = append([]JWK{}, set.Keys...)
	return nil
}
