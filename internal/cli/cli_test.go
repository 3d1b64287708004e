package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"portfolio-console/internal/authtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cliHarness struct {
	t      *testing.T
	server *authtest.Server
}

func newCLIHarness(t *testing.T, accounts ...authtest.Account) *cliHarness {
	t.Helper()
	server, err := authtest.New(authtest.Options{})
	require.NoError(t, err)
	t.Cleanup(server.Close)
	for _, a := range accounts {
		_, err := server.AddAccount(a)
		require.NoError(t, err)
	}

	for _, k := range []string{"PORTFOLIO_CONFIG", "STORE_DRIVER", "SESSION_REVALIDATE", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
	t.Setenv("API_URL", server.URL())
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "session.db"))
	return &cliHarness{t: t, server: server}
}

// run executes one portfolioctl invocation with stdin and returns its exit
// code, stdout and stderr.
func (h *cliHarness) run(stdin string, args ...string) (int, string, string) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	c := New(WithIO(strings.NewReader(stdin), &out, &errOut), WithLogger(zap.NewNop()))
	code := c.Execute(context.Background(), args)
	return code, out.String(), errOut.String()
}

var (
	admin = authtest.Account{Email: "admin@example.com", Username: "admin", FullName: "Ada Admin", Password: "correct-horse", Superuser: true}
	staff = authtest.Account{Email: "staff@example.com", Username: "staff", Password: "correct-horse"}
	mfa   = authtest.Account{Email: "mfa@example.com", Username: "mfa", Password: "correct-horse", Superuser: true, Email2FA: true}
)

func TestCLI_LoginStatusLogout(t *testing.T) {
	h := newCLIHarness(t, admin)

	code, out, _ := h.run("correct-horse\n", "login", "admin", "--password-stdin")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Signed in as Ada Admin.")

	code, out, _ = h.run("", "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Signed in as Ada Admin <admin@example.com>")
	assert.Contains(t, out, "administrator: true")
	assert.Contains(t, out, "token expires:")

	code, out, _ = h.run("", "login", "admin")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Already signed in")

	code, out, _ = h.run("", "logout")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Signed out.")

	_, out, _ = h.run("", "status")
	assert.Contains(t, out, "Not signed in.")
}

func TestCLI_LoginRejected(t *testing.T) {
	h := newCLIHarness(t, admin)

	code, _, errOut := h.run("wrong\n", "login", "admin", "--password-stdin")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error: Incorrect email or password")
}

func TestCLI_TwoFactorAcrossInvocations(t *testing.T) {
	h := newCLIHarness(t, mfa)

	code, out, _ := h.run("correct-horse\n", "login", "mfa", "--password-stdin")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Two-factor verification required (email)")

	_, out, _ = h.run("", "status")
	assert.Contains(t, out, "Two-factor verification pending")

	code, out, _ = h.run("", "request-code")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Verification code sent")

	code, out, _ = h.run("", "verify-2fa", h.server.LastCode("mfa@example.com"))
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Signed in as mfa.")
}

func TestCLI_AdminGuard(t *testing.T) {
	h := newCLIHarness(t, staff)

	code, _, errOut := h.run("", "refresh")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "/login?returnUrl=%2Fadmin")

	code, out, _ := h.run("correct-horse\n", "login", "staff", "--password-stdin")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "not an administrator")

	code, _, errOut = h.run("correct-horse\n", "security", "totp", "enable")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "administrator account required")
}

func TestCLI_SecurityCommands(t *testing.T) {
	h := newCLIHarness(t, admin)

	code, _, _ := h.run("correct-horse\n", "login", "admin", "--password-stdin")
	require.Equal(t, 0, code)

	code, out, _ := h.run("correct-horse\n", "security", "totp", "enable")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "secret:")
	assert.Contains(t, out, "otpauth://totp/")
	assert.Contains(t, out, "Backup codes")

	code, _, errOut := h.run("", "security", "totp", "verify", "000000")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Invalid verification code")

	code, out, _ = h.run("correct-horse\n", "security", "email", "enable")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Email 2FA enabled successfully")

	_, out, _ = h.run("", "status")
	assert.Contains(t, out, "email=true")

	code, _, errOut = h.run("correct-horse\nshort\nshort\n", "security", "password", "--password-stdin")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "at least 8 characters")

	code, _, errOut = h.run("correct-horse\nbattery-staple\nbattery-stapler\n", "security", "password", "--password-stdin")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "do not match")

	code, out, _ = h.run("correct-horse\nbattery-staple\nbattery-staple\n", "security", "password", "--password-stdin")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Password changed successfully")
}

func TestCLI_ExpiredSessionIsDropped(t *testing.T) {
	h := newCLIHarness(t, admin)

	code, _, _ := h.run("correct-horse\n", "login", "admin", "--password-stdin")
	require.Equal(t, 0, code)

	h.server.Fail("/auth/refresh", 401)
	code, _, errOut := h.run("", "refresh")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error:")

	_, out, _ := h.run("", "status")
	assert.Contains(t, out, "Not signed in.")
}

func TestCLI_BadStoreFlag(t *testing.T) {
	h := newCLIHarness(t)
	code, _, errOut := h.run("", "status", "--store", "sqlite")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown store driver")
}

func TestCLI_StoreFlagOverridesBadEnv(t *testing.T) {
	h := newCLIHarness(t)
	t.Setenv("STORE_DRIVER", "sqlite")

	code, _, errOut := h.run("", "status")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown store driver")

	code, out, _ := h.run("", "status", "--store", "memory")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Not signed in.")
}
