package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat(string(rune(b)), 32)))
}

func TestFieldCipherRoundTrip(t *testing.T) {
	c, err := NewFieldCipher(testKey('k'))
	require.NoError(t, err)

	stored, err := c.Encrypt("hello, bob")
	require.NoError(t, err)
	assert.NotContains(t, stored, "hello")

	again, err := c.Encrypt("hello, bob")
	require.NoError(t, err)
	assert.NotEqual(t, stored, again, "nonce must differ per call")

	plain, err := c.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "hello, bob", plain)
}

func TestFieldCipherRejectsWrongKey(t *testing.T) {
	a, err := NewFieldCipher(testKey('a'))
	require.NoError(t, err)
	b, err := NewFieldCipher(testKey('b'))
	require.NoError(t, err)

	stored, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(stored)
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = a.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestNewFieldCipherKeyLength(t *testing.T) {
	_, err := NewFieldCipher(base64.StdEncoding.EncodeToString([]byte("too-short")))
	assert.Error(t, err)

	_, err = NewFieldCipher("%%%")
	assert.Error(t, err)
}

func TestNewNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewNumericCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^[0-9]{6}$`, code)
	}
}
