package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned for tokens without an exp claim.
var ErrNoExpiry = errors.New("token has no expiry claim")

// ExpiresAt decodes the exp claim of a compact JWT without verifying its
// signature. The result is only fit for client-side display decisions.
func ExpiresAt(tokenString string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token's exp is at or before now.
func IsExpired(tokenString string, now time.Time) (bool, error) {
	exp, err := ExpiresAt(tokenString)
	if err != nil {
		return true, err
	}
	return !exp.After(now), nil
}
