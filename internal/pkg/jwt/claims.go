// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes
const (
	PurposeAccess = "access"
	PurposeTemp   = "2fa_pending"
)

// Claims represents the JWT claims issued by the portfolio API
type Claims struct {
	UserID      int64  `json:"uid"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
	Purpose     string `json:"purpose"`
	jwt.RegisteredClaims
}

// IsTemp reports whether the token only authorizes a 2FA verification
func (c *Claims) IsTemp() bool {
	return c.Purpose == PurposeTemp
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
