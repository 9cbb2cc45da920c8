// Package secrets seals customer identity fields at rest with AES-256-GCM.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the AES-256 key length in bytes
const KeySize = 32

var (
	ErrInvalidKey    = errors.New("encryption key must be 32 bytes")
	ErrInvalidSealed = errors.New("sealed value is malformed")
)

// Sealed is an encrypted value stored as three columns
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// Cipher encrypts and decrypts Sealed values
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher returns a Cipher for a 32-byte key
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// ParseKey accepts a hex (64 chars) or standard base64 encoded key
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random IV
func (c *Cipher) Encrypt(plaintext string) (Sealed, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("generating iv: %w", err)
	}

	out := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(out) - c.aead.Overhead()
	return Sealed{
		Ciphertext: out[:split],
		IV:         iv,
		Tag:        out[split:],
	}, nil
}

// Decrypt opens a Sealed value, failing when it was tampered with
func (c *Cipher) Decrypt(s Sealed) (string, error) {
	if len(s.IV) != c.aead.NonceSize() || len(s.Tag) != c.aead.Overhead() {
		return "", ErrInvalidSealed
	}

	buf := make([]byte, 0, len(s.Ciphertext)+len(s.Tag))
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.Tag...)

	plain, err := c.aead.Open(nil, s.IV, buf, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plain), nil
}
