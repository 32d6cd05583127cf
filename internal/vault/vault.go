// internal/vault/vault.go
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	custom_errors "codesentry/internal/errors"
)

const (
	keySize = 32
	ivSize  = 16
	tagSize = 16
)

// Vault encrypts and decrypts stored access tokens with AES-256-GCM.
// Encoded values have the form hex(iv):hex(tag):hex(ciphertext).
type Vault struct {
	aead cipher.AEAD
	rand io.Reader
}

// New creates a Vault from a 64 character hex key.
func New(hexKey string) (*Vault, error) {
	if hexKey == "" {
		return nil, &custom_errors.ErrInvalidKey{Reason: "key is not set"}
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &custom_errors.ErrInvalidKey{Reason: "key is not valid hex"}
	}
	if len(key) != keySize {
		return nil, &custom_errors.ErrInvalidKey{Reason: fmt.Sprintf("key must be %d bytes, got %d", keySize, len(key))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead, rand: rand.Reader}, nil
}

// GenerateKey returns a fresh random key suitable for New.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// Encrypt seals plaintext under a fresh random IV.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", custom_errors.ErrEmptyPlaintext
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(v.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a value produced by Encrypt. A malformed value yields a
// MalformedCredentialError; a tampered value or wrong key yields ErrDecryptionFailed.
func (v *Vault) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", &custom_errors.MalformedCredentialError{Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts))}
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", &custom_errors.MalformedCredentialError{Reason: "invalid iv segment"}
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", &custom_errors.MalformedCredentialError{Reason: "invalid auth tag segment"}
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil || len(ct) == 0 {
		return "", &custom_errors.MalformedCredentialError{Reason: "invalid ciphertext segment"}
	}

	plaintext, err := v.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", custom_errors.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value looks like an encoded credential.
// Only the structure is checked.
func IsEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return false
	}
	return isHex(parts[0], ivSize*2) && isHex(parts[1], tagSize*2)
}

func isHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
