package cryptox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// ErrOTPMismatch is returned when a one-time code does not match its hash.
var ErrOTPMismatch = errors.New("cryptox: otp does not match")

// OTPHasher hashes short one-time codes with bcrypt. Codes are low entropy
// and short lived, so the hash only has to survive the lifetime of a TFA
// pending token.
type OTPHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of code.
func (h OTPHasher) Hash(code string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash otp: %w", err)
	}
	return string(b), nil
}

// Verify checks code against hash.
func (h OTPHasher) Verify(code, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrOTPMismatch
	}
	return err
}

// GenerateNumericCode returns a uniformly random decimal code of n digits.
func GenerateNumericCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", n)
	}

	code := make([]byte, n)
	for i := range code {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code[i] = byte('0' + d.Int64())
	}
	return string(code), nil
}
