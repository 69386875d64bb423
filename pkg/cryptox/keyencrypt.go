package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// KeyEncryptor seals private key material with AES-256-GCM.
// Output format is [12-byte nonce][ciphertext][16-byte tag].
type KeyEncryptor struct {
	aead cipher.AEAD
}

// NewKeyEncryptor derives an AES-256 key from material with SHA-256.
func NewKeyEncryptor(material []byte) (*KeyEncryptor, error) {
	if len(material) == 0 {
		return nil, fmt.Errorf("cryptox: empty master key")
	}

	key := sha256.Sum256(material)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &KeyEncryptor{aead: gcm}, nil
}

// LoadKeyEncryptor reads the master key from path, falling back to the
// AUTH_MASTER_KEY value. Both empty is an error: a random key would make
// every persisted signing key unreadable after a restart.
func LoadKeyEncryptor(path, envValue string) (*KeyEncryptor, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		return NewKeyEncryptor(data)
	}
	return NewKeyEncryptor([]byte(envValue))
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *KeyEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (e *KeyEncryptor) Decrypt(data []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(data) < n {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
