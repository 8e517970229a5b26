package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

var (
	// ErrInvalidFormat reports a token that is not three colon-separated hex fields.
	ErrInvalidFormat = errors.New("vault: invalid token format")
	// ErrDecryptionFailed reports a tag mismatch or wrong key. No partial
	// plaintext is ever returned alongside it.
	ErrDecryptionFailed = errors.New("vault: decryption failed")
)

// Vault encrypts and decrypts provider API keys with AES-256-GCM.
// Tokens are serialized as hex(nonce):hex(tag):hex(ciphertext) so rows
// written by earlier deployments keep decrypting.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a deployment secret. The key must be exactly
// 32 bytes; there is no padded fallback.
func New(key string) (*Vault, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("vault: encryption key must be %d bytes, got %d", keySize, len(key))
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}

	// 16-byte nonces match the stored token format; GCM's default is 12.
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals a secret under a fresh random nonce and returns the
// serialized token.
func (v *Vault) Encrypt(secret string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(secret), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a token produced by Encrypt. It fails closed: any
// malformed field returns ErrInvalidFormat, any authentication failure
// returns ErrDecryptionFailed.
func (v *Vault) Decrypt(token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", ErrInvalidFormat
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrInvalidFormat
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrInvalidFormat
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidFormat
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
