package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

var codeSpace = big.NewInt(1_000_000)

// NewNumericCode returns a zero-padded six digit code.
func NewNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ConstantTimeEqual compares two codes without leaking timing.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
