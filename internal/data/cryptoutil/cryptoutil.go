// Package cryptoutil seals tenant client secrets before they reach the
// database and opens them again on read.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SealedPrefix marks a value produced by AESGCMSealer. The version allows a
// later key or algorithm rotation without a data migration.
const SealedPrefix = "v1:"

// ErrNoKey is returned when a sealed value is read without a configured key.
var ErrNoKey = errors.New("secret is sealed but no encryption key is configured")

// Sealer converts client secrets to and from their stored form.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// IsSealed reports whether stored carries the sealed prefix.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, SealedPrefix)
}

// NewSealer returns an AES-GCM sealer for key, or a PlainSealer when key is
// empty. A 64 character hex key is used as is; any other key is hashed to 32
// bytes.
//
//nolint:ireturn // callers only need the Sealer behavior.
func NewSealer(key string) (Sealer, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return PlainSealer{}, nil
	}
	return NewAESGCMSealer(KeyBytes(key))
}

// KeyBytes derives the 32 byte AES-256 key from a configured key string.
func KeyBytes(key string) []byte {
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		return decoded
	}
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// AESGCMSealer seals secrets with AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer constructs a sealer. Key must be 32 bytes.
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &AESGCMSealer{aead: aead}, nil
}

// Seal encrypts plaintext with a random nonce and returns the prefixed
// base64 of nonce||ciphertext. Empty input stays empty.
func (s *AESGCMSealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	buf := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a sealed value. Values without the prefix were written
// before a key was configured and are returned unchanged.
func (s *AESGCMSealer) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(stored[len(SealedPrefix):])
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("sealed secret too short")
	}
	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed secret: %w", err)
	}
	return string(pt), nil
}

// PlainSealer stores secrets unchanged. It refuses to open sealed values so
// a missing key fails loudly instead of sending ciphertext upstream.
type PlainSealer struct{}

// Seal returns plaintext unchanged.
func (PlainSealer) Seal(plaintext string) (string, error) {
	return plaintext, nil
}

// Open returns stored unchanged unless it is sealed.
func (PlainSealer) Open(stored string) (string, error) {
	if IsSealed(stored) {
		return "", ErrNoKey
	}
	return stored, nil
}
