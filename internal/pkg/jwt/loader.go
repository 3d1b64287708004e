// internal/pkg/jwt/loader.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"
)

type Config struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	TempTTL  time.Duration
	KID      string
}

type Manager struct {
	Generator *Generator
	Verifier  *Verifier
}

// Build wires a generator and verifier around one key pair.
func Build(priv *rsa.PrivateKey, cfg Config) (*Manager, error) {
	if priv == nil {
		return nil, fmt.Errorf("jwt manager needs a private key")
	}

	gen := NewGenerator(priv, cfg.Issuer, cfg.Audience, cfg.KID, cfg.TTL)
	if cfg.TempTTL > 0 {
		gen.TempTTL = cfg.TempTTL
	}
	ver := NewVerifier(&priv.PublicKey, cfg.Issuer, cfg.Audience)

	return &Manager{
		Generator: gen,
		Verifier:  ver,
	}, nil
}
