// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
	TempTTL  time.Duration
	Now      func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
		TempTTL:  10 * time.Minute,
		Now:      time.Now,
	}
}

// Generate creates a new signed token and returns it with its jti
func (g *Generator) Generate(userID int64, isSuperuser bool, purpose string, ttl time.Duration) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}

	now := g.Now()
	jti := ulid.Make().String()

	claims := &Claims{
		UserID:      userID,
		IsSuperuser: isSuperuser,
		Purpose:     purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}

// GenerateAccessToken generates a standard access token
func (g *Generator) GenerateAccessToken(userID int64, isSuperuser bool) (string, string, error) {
	return g.Generate(userID, isSuperuser, PurposeAccess, g.Ttl)
}

// GenerateTempToken generates the short-lived token handed out while a
// second factor is pending
func (g *Generator) GenerateTempToken(userID int64) (string, string, error) {
	return g.Generate(userID, false, PurposeTemp, g.TempTTL)
}
