package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"portfolio-console/internal/api"
	"portfolio-console/internal/authtest"
	"portfolio-console/internal/domain/auth"
	xerrors "portfolio-console/internal/pkg/errors"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	server  *authtest.Server
	client  *api.Client
	manager *Manager
	store   *MemoryStore
}

func newHarness(t *testing.T, accounts ...authtest.Account) *harness {
	t.Helper()
	server, err := authtest.New(authtest.Options{})
	require.NoError(t, err)
	t.Cleanup(server.Close)

	for _, a := range accounts {
		_, err := server.AddAccount(a)
		require.NoError(t, err)
	}

	client := api.New(api.Config{BaseURL: server.URL(), Timeout: 5 * time.Second}, zap.NewNop())
	store := NewMemoryStore()
	m := newTestManager(t, client, store)
	client.SetAuthenticator(m)

	return &harness{server: server, client: client, manager: m, store: store}
}

var (
	plainAdmin = authtest.Account{Email: "admin@example.com", Username: "admin", Password: "correct-horse", Superuser: true}
	emailAdmin = authtest.Account{Email: "mail@example.com", Username: "mail", Password: "correct-horse", Superuser: true, Email2FA: true}
)

func TestAPI_PlainLogin(t *testing.T) {
	h := newHarness(t, plainAdmin)
	ctx := context.Background()

	res, err := h.manager.Login(ctx, "admin@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, DestinationAdmin, res.Destination)
	assert.True(t, h.manager.IsAdmin())
	assert.NotEmpty(t, h.server.LastRequestID())

	// the bearer is attached from the session
	require.NoError(t, h.manager.LoadCurrentUser(ctx))
	assert.Equal(t, "admin@example.com", h.manager.CurrentUser().Email)
}

func TestAPI_BadPasswordKeepsSession(t *testing.T) {
	h := newHarness(t, plainAdmin)
	ctx := context.Background()

	_, err := h.manager.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	_, err = h.manager.Login(ctx, "admin", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, "Incorrect email or password", xerrors.MessageOrDefault(err, ""))
	assert.True(t, h.manager.IsAuthenticated(), "a rejected login is not an unauthorized session")
}

func TestAPI_EmailTwoFactor(t *testing.T) {
	h := newHarness(t, emailAdmin)
	ctx := context.Background()

	res, err := h.manager.Login(ctx, "mail", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, DestinationVerify2FA, res.Destination)
	assert.Equal(t, []string{auth.MethodEmail}, res.Methods)
	require.Len(t, h.server.SentCodes("mail@example.com"), 1)

	_, err = h.manager.Verify2FA(ctx, "", "000000x")
	require.Error(t, err)
	assert.Equal(t, "Invalid verification code", xerrors.MessageOrDefault(err, ""))

	msg, err := h.manager.RequestEmailCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Verification code sent", msg)
	require.Len(t, h.server.SentCodes("mail@example.com"), 2)

	res, err = h.manager.Verify2FA(ctx, "", h.server.LastCode("mail@example.com"))
	require.NoError(t, err)
	assert.Equal(t, DestinationAdmin, res.Destination)
	assert.True(t, h.manager.IsAdmin())
	assert.Empty(t, h.manager.TempToken())
}

func TestAPI_TOTPTwoFactor(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Portfolio", AccountName: "totp@example.com"})
	require.NoError(t, err)
	h := newHarness(t, authtest.Account{Email: "totp@example.com", Username: "totp", Password: "correct-horse", TOTPSecret: key.Secret()})
	ctx := context.Background()

	res, err := h.manager.Login(ctx, "totp", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, []string{auth.MethodTOTP}, res.Methods)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	_, err = h.manager.Verify2FA(ctx, "", code)
	require.NoError(t, err)
	assert.True(t, h.manager.IsAuthenticated())
	assert.False(t, h.manager.IsAdmin())
	assert.True(t, h.manager.Has2FA())
}

func TestAPI_LoginWithoutUserFetchesMe(t *testing.T) {
	h := newHarness(t, plainAdmin)
	h.server.OmitUser(true)

	_, err := h.manager.Login(context.Background(), "admin", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, 1, h.server.Calls(api.PathMe))
	assert.True(t, h.manager.IsAdmin())
}

func TestAPI_Refresh(t *testing.T) {
	h := newHarness(t, plainAdmin)
	ctx := context.Background()

	_, err := h.manager.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	before := h.manager.AccessToken()

	require.NoError(t, h.manager.RefreshToken(ctx))
	assert.NotEqual(t, before, h.manager.AccessToken())
	assert.Equal(t, 1, h.server.Calls(api.PathRefresh))

	h.server.Fail(api.PathRefresh, http.StatusUnauthorized)
	assert.ErrorIs(t, h.manager.RefreshToken(ctx), xerrors.ErrSessionExpired)
	assert.False(t, h.manager.IsAuthenticated())
	assert.Equal(t, 0, h.store.Len())
}

func TestAPI_UnauthorizedResponseLogsOut(t *testing.T) {
	h := newHarness(t, plainAdmin)
	ctx := context.Background()
	events := record(h.manager)

	_, err := h.manager.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	h.server.Fail(api.PathEnableTOTP, http.StatusForbidden)
	_, err = h.manager.EnableTOTP(ctx, "correct-horse")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.False(t, h.manager.IsAuthenticated())
	assert.Equal(t, ReasonUnauthorized, events.last().Reason)
}

func TestAPI_TOTPSetupAndPasswordChange(t *testing.T) {
	h := newHarness(t, plainAdmin)
	ctx := context.Background()

	_, err := h.manager.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	setup, err := h.manager.EnableTOTP(ctx, "correct-horse")
	require.NoError(t, err)
	assert.Len(t, setup.BackupCodes, 8)
	assert.Contains(t, setup.QRCode, "otpauth://")

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	_, err = h.manager.VerifyTOTP(ctx, code)
	require.NoError(t, err)
	assert.True(t, h.manager.CurrentUser().TOTPEnabled)

	_, err = h.manager.ChangePassword(ctx, "correct-horse", "battery-staple")
	require.NoError(t, err)
	h.manager.Logout()

	// the next login is challenged and a backup code gets through
	res, err := h.manager.Login(ctx, "admin", "battery-staple")
	require.NoError(t, err)
	assert.Contains(t, res.Methods, auth.MethodBackup)
	_, err = h.manager.Verify2FA(ctx, "", setup.BackupCodes[0])
	require.NoError(t, err)
	assert.True(t, h.manager.IsAdmin())
}
