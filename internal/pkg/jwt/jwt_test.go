package jwt

import (
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	keyOnce.Do(func() {
		k, err := GenerateRSAKey(2048)
		require.NoError(t, err)
		testKey = k
	})
	m, err := Build(testKey, Config{Issuer: "portfolio-api", Audience: "portfolio-admin", TTL: time.Hour, KID: "test"})
	require.NoError(t, err)
	return m
}

func TestGenerateAndVerify(t *testing.T) {
	m := newTestManager(t)

	tok, jti, err := m.Generator.GenerateAccessToken(7, true)
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := m.Verifier.VerifyAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.True(t, claims.IsSuperuser)
	assert.Equal(t, jti, claims.ID)

	_, err = m.Verifier.VerifyTempToken(tok)
	assert.Error(t, err)
}

func TestTempTokenIsNotAccess(t *testing.T) {
	m := newTestManager(t)

	tok, _, err := m.Generator.GenerateTempToken(3)
	require.NoError(t, err)

	_, err = m.Verifier.VerifyAccessToken(tok)
	assert.Error(t, err)

	claims, err := m.Verifier.VerifyTempToken(tok)
	require.NoError(t, err)
	assert.True(t, claims.IsTemp())
}

func TestExpiresAt(t *testing.T) {
	m := newTestManager(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.Generator.Now = func() time.Time { return fixed }

	tok, _, err := m.Generator.GenerateAccessToken(1, false)
	require.NoError(t, err)

	exp, err := ExpiresAt(tok)
	require.NoError(t, err)
	assert.True(t, exp.Equal(fixed.Add(time.Hour)))

	expired, err := IsExpired(tok, exp)
	require.NoError(t, err)
	assert.True(t, expired, "exp == now counts as expired")

	expired, err = IsExpired(tok, exp.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = IsExpired(tok, exp.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestExpiresAt_Malformed(t *testing.T) {
	_, err := ExpiresAt("not-a-jwt")
	assert.Error(t, err)

	expired, err := IsExpired("", time.Now())
	assert.Error(t, err)
	assert.True(t, expired)
}
