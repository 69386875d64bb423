package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Verifier validates a JWT against a KeySet and gives you back the claims if
// it's legit. The kid header picks the key; the key type picks the algorithm.
type Verifier struct {
	keys   *KeySet
	issuer string
	aud    []string

	// Now is the clock used for exp/nbf checks. Defaults to time.Now.
	Now func() time.Time
}

// NewVerifier creates a verifier over keys. Empty issuer or audience means
// "don't care".
func NewVerifier(keys *KeySet, issuer string, aud []string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, aud: aud, Now: time.Now}
}

// Verify checks signature, issuer, audience and time claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims, err := v.VerifySignature(token)
	if err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiryAt(v.Now()); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifySignature checks signature, issuer and audience but leaves exp/nbf to
// the caller. Token services use this so an expired token can still be
// identified and evicted.
func (v *Verifier) VerifySignature(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, v.keyFunc)
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
	}

	pub, err := v.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}

	if keyAlg(pub) != t.Method.Alg() {
		return nil, ErrAlgMismatch
	}
	return pub, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID), errors.Is(err, ErrAlgMismatch):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrAlgMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
