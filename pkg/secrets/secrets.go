// Package secrets seals account signing keys at rest.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	dErrors "notary/pkg/domain-errors"
)

// Box seals and opens small secrets with XChaCha20-Poly1305. The nonce is
// prepended to the ciphertext.
type Box struct {
	key []byte
}

// NewBox builds a Box from a base64 encoded 32-byte key.
func NewBox(encodedKey string) (*Box, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode key encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Box{key: key}, nil
}

// GenerateKey returns a fresh base64 encoded key suitable for NewBox.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("could not generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts plaintext; additionalData binds the ciphertext to its owner.
func (b *Box) Seal(plaintext, additionalData []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(sealed, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sealed secret is truncated")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sealed secret failed authentication")
	}
	return plain, nil
}
