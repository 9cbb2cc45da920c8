package secrets

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, KeySize)
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	sealed, err := c.Encrypt("42101-1234567-45")
	require.NoError(t, err)
	assert.Len(t, sealed.IV, 12)
	assert.Len(t, sealed.Tag, 16)
	assert.NotContains(t, string(sealed.Ciphertext), "1234567")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "42101-1234567-45", plain)
}

func TestCipher_FreshIVPerCall(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a.IV, b.IV)
}

func TestCipher_Tampering(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)
	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(s *Sealed)
	}{
		{"flipped ciphertext", func(s *Sealed) { s.Ciphertext[0] ^= 0xff }},
		{"flipped tag", func(s *Sealed) { s.Tag[0] ^= 0xff }},
		{"short iv", func(s *Sealed) { s.IV = s.IV[:4] }},
		{"missing tag", func(s *Sealed) { s.Tag = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sealed{
				Ciphertext: append([]byte(nil), sealed.Ciphertext...),
				IV:         append([]byte(nil), sealed.IV...),
				Tag:        append([]byte(nil), sealed.Tag...),
			}
			tt.mutate(&s)
			_, err := c.Decrypt(s)
			assert.Error(t, err)
		})
	}
}

func TestParseKey(t *testing.T) {
	key := testKey()

	got, err := ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseKey("short")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewCipher([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
