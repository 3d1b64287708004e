package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// GenerateRSAKey creates an in-memory signing key pair.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		bits = 2048
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	return key, nil
}
