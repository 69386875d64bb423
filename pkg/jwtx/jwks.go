package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

var ErrUnsupportedKey = errors.New("jwtx: unsupported key")

// JWK is the public half of a signing key as published in the key set
// (RFC 7517). Only the members of RSA, EC P-256 and Ed25519 keys are
// carried.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`

	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

var b64 = base64.RawURLEncoding

// NewJWK describes pub as a signature key. The algorithm follows from the
// key type.
func NewJWK(kid string, pub crypto.PublicKey) (JWK, error) {
	j := JWK{Use: "sig", Kid: kid}
	switch k := pub.(type) {
	case *rsa.PublicKey:
		j.Kty, j.Alg = "RSA", AlgorithmRS256
		j.N = b64.EncodeToString(k.N.Bytes())
		j.E = b64.EncodeToString(big.NewInt(int64(k.E)).Bytes())
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return JWK{}, fmt.Errorf("%w: EC curve %s", ErrUnsupportedKey, k.Curve.Params().Name)
		}
		j.Kty, j.Alg, j.Crv = "EC", AlgorithmES256, "P-256"
		// Coordinates are fixed width, left padded.
		j.X = b64.EncodeToString(k.X.FillBytes(make([]byte, 32)))
		j.Y = b64.EncodeToString(k.Y.FillBytes(make([]byte, 32)))
	case ed25519.PublicKey:
		j.Kty, j.Alg, j.Crv = "OKP", AlgorithmEdDSA, "Ed25519"
		j.X = b64.EncodeToString(k)
	default:
		return JWK{}, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
	return j, nil
}

// PublicKey decodes the key material of j.
func (j JWK) PublicKey() (crypto.PublicKey, error) {
	switch j.Kty {
	case "RSA":
		n, err := b64.DecodeString(j.N)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk %q n: %w", j.Kid, err)
		}
		e, err := b64.DecodeString(j.E)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk %q e: %w", j.Kid, err)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}, nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, fmt.Errorf("%w: EC curve %s", ErrUnsupportedKey, j.Crv)
		}
		x, err := b64.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk %q x: %w", j.Kid, err)
		}
		y, err := b64.DecodeString(j.Y)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk %q y: %w", j.Kid, err)
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil

	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, fmt.Errorf("%w: OKP curve %s", ErrUnsupportedKey, j.Crv)
		}
		x, err := b64.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk %q x: %w", j.Kid, err)
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("jwtx: jwk %q: Ed25519 key is %d bytes", j.Kid, len(x))
		}
		return ed25519.PublicKey(x), nil

	default:
		return nil, fmt.Errorf("%w: kty %q", ErrUnsupportedKey, j.Kty)
	}
}

// keyAlg reports which JWS algorithm a public key verifies.
func keyAlg(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return AlgorithmRS256
	case *ecdsa.PublicKey:
		return AlgorithmES256
	case ed25519.PublicKey:
		return AlgorithmEdDSA
	default:
		return ""
	}
}
