package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWKRoundTrip(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tests := []struct {
		name string
		pub  crypto.PublicKey
		kty  string
		alg  string
	}{
		{"rsa", &rsaKey.PublicKey, "RSA", AlgorithmRS256},
		{"ec", &ecKey.PublicKey, "EC", AlgorithmES256},
		{"ed25519", edPub, "OKP", AlgorithmEdDSA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := NewJWK("k1", tt.pub)
			require.NoError(t, err)
			require.Equal(t, tt.kty, j.Kty)
			require.Equal(t, tt.alg, j.Alg)
			require.Equal(t, "sig", j.Use)

			raw, err := json.Marshal(j)
			require.NoError(t, err)
			var decoded JWK
			require.NoError(t, json.Unmarshal(raw, &decoded))

			pub, err := decoded.PublicKey()
			require.NoError(t, err)
			require.True(t, pub.(interface{ Equal(crypto.PublicKey) bool }).Equal(tt.pub))
			require.Equal(t, tt.alg, keyAlg(pub))
		})
	}
}

func TestNewJWKRejectsOtherCurves(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	_, err = NewJWK("k1", &key.PublicKey)
	require.ErrorIs(t, err, ErrUnsupportedKey)
}

func TestJWKPublicKeyErrors(t *testing.T) {
	tests := []struct {
		name string
		jwk  JWK
	}{
		{"unknown kty", JWK{Kty: "oct"}},
		{"okp curve", JWK{Kty: "OKP", Crv: "X25519", X: "AAAA"}},
		{"ec curve", JWK{Kty: "EC", Crv: "P-521"}},
		{"short ed25519", JWK{Kty: "OKP", Crv: "Ed25519", X: "AAAA"}},
		{"bad base64", JWK{Kty: "RSA", N: "!!", E: "AQAB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.jwk.PublicKey()
			require.Error(t, err)
		})
	}
}

func TestKeySet(t *testing.T) {
	pub1, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub2, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	j1, err := NewJWK("a", pub1)
	require.NoError(t, err)
	j2, err := NewJWK("b", pub2)
	require.NoError(t, err)

	ks := NewKeySet()
	require.False(t, ks.IsReady())

	require.NoError(t, ks.Add(j1))
	require.NoError(t, ks.Add(j2))
	require.NoError(t, ks.Add(j1))
	require.True(t, ks.IsReady())
	require.Equal(t, []JWK{j1, j2}, ks.PublicJWKS().Keys)

	got, err := ks.Get("b")
	require.NoError(t, err)
	require.Equal(t, pub2, got)
	_, err = ks.Get("c")
	require.ErrorIs(t, err, ErrNoKey)

	// A failed reset keeps the current keys.
	require.Error(t, ks.ResetFromJWKS(JWKS{Keys: []JWK{j2, {Kid: "x", Kty: "oct"}}}))
	require.Len(t, ks.PublicJWKS().Keys, 2)

	require.NoError(t, ks.ResetFromJWKS(JWKS{Keys: []JWK{j2}}))
	_, err = ks.Get("a")
	require.ErrorIs(t, err, ErrNoKey)
	require.Equal(t, []JWK{j2}, ks.PublicJWKS().Keys)
}
