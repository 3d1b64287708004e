package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"portfolio-console/internal/app"
	"portfolio-console/internal/domain/auth"
	xerrors "portfolio-console/internal/pkg/errors"
	"portfolio-console/internal/pkg/jwt"
	"portfolio-console/internal/pkg/session"

	"github.com/pquerna/otp"
)

var errAccessDenied = errors.New("access denied")

const (
	minPasswordLength = 8
	totpIssuer        = "Portfolio"
)

// console runs session actions and prints their outcome.
type console struct {
	app    *app.App
	prompt prompter

	mu  sync.Mutex
	out io.Writer
}

func newConsole(a *app.App, p prompter, out io.Writer) *console {
	return &console{app: a, prompt: p, out: out}
}

func (c *console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) session() *session.Manager { return c.app.Session }

// requireAdmin runs the admin guard for returnURL.
func (c *console) requireAdmin(ctx context.Context, returnURL string) error {
	d, err := session.RequireAdmin(ctx, c.session(), returnURL)
	if err != nil {
		return err
	}
	if d.Allow {
		return nil
	}
	if d.Redirect == session.DestinationLogin {
		return fmt.Errorf("%w: not signed in, run login first (%s)", errAccessDenied, d.RedirectURL())
	}
	return fmt.Errorf("%w: administrator account required (%s)", errAccessDenied, d.RedirectURL())
}

func (c *console) login(ctx context.Context, identifier string, force bool) error {
	if !force {
		d, err := session.PublicOnly(ctx, c.session())
		if err != nil {
			return err
		}
		if !d.Allow {
			c.printf("Already signed in as %s. Use --force to sign in again.\n", c.session().CurrentUser().DisplayName())
			return nil
		}
	}

	if identifier == "" {
		var err error
		if identifier, err = c.prompt.Line("Email or username: "); err != nil {
			return err
		}
	}
	password, err := c.prompt.Secret("Password: ")
	if err != nil {
		return err
	}
	if identifier == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", xerrors.ErrInvalidInput)
	}

	res, err := c.session().Login(ctx, identifier, password)
	if err != nil {
		return err
	}
	c.reportLogin(res)
	return nil
}

func (c *console) reportLogin(res *session.LoginResult) {
	if res.Destination == session.DestinationVerify2FA {
		c.printf("Two-factor verification required (%s).\n", strings.Join(res.Methods, ", "))
		for _, m := range res.Methods {
			switch m {
			case auth.MethodEmail:
				c.printf("  A code was sent to your email.\n")
			case auth.MethodTOTP:
				c.printf("  Use the code from your authenticator app.\n")
			case auth.MethodBackup:
				c.printf("  Or enter one of your backup codes.\n")
			}
		}
		return
	}
	c.printf("Signed in as %s.\n", res.User.DisplayName())
	if !res.User.IsSuperuser {
		c.printf("This account is not an administrator.\n")
	}
}

func (c *console) verify(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: verification code is required", xerrors.ErrInvalidInput)
	}
	res, err := c.session().Verify2FA(ctx, "", code)
	if err != nil {
		return err
	}
	c.reportLogin(res)
	return nil
}

func (c *console) requestCode(ctx context.Context) error {
	msg, err := c.session().RequestEmailCode(ctx)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Verification code sent."
	}
	c.printf("%s\n", msg)
	return nil
}

func (c *console) logout() {
	c.session().Logout()
	c.printf("Signed out.\n")
}

func (c *console) status() {
	state := c.session().Snapshot()
	switch {
	case state.IsAuthenticated():
		u := state.User
		c.printf("Signed in as %s <%s>\n", u.DisplayName(), u.Email)
		c.printf("  administrator: %t\n", u.IsSuperuser)
		c.printf("  two-factor:    email=%t totp=%t\n", u.Email2FAEnabled, u.TOTPEnabled)
		if exp, err := jwt.ExpiresAt(state.AccessToken); err == nil {
			c.printf("  token expires: %s\n", exp.Local().Format(time.RFC1123))
		}
	case state.TempToken != "":
		c.printf("Two-factor verification pending (%s).\n", strings.Join(state.Available2FAMethods, ", "))
	default:
		c.printf("Not signed in.\n")
	}
}

func (c *console) refresh(ctx context.Context) error {
	if err := c.requireAdmin(ctx, "/admin"); err != nil {
		return err
	}
	if err := c.session().RefreshToken(ctx); err != nil {
		return err
	}
	c.printf("Session refreshed.\n")
	return nil
}

func (c *console) totpEnable(ctx context.Context) error {
	if err := c.requireAdmin(ctx, "/admin/security"); err != nil {
		return err
	}
	password, err := c.prompt.Secret("Password: ")
	if err != nil {
		return err
	}
	resp, err := c.session().EnableTOTP(ctx, password)
	if err != nil {
		return err
	}

	key, err := totpKey(resp, c.session().CurrentUser().Email)
	if err != nil {
		return err
	}
	c.printf("Add this account to your authenticator app:\n")
	c.printf("  issuer:  %s\n", key.Issuer())
	c.printf("  account: %s\n", key.AccountName())
	c.printf("  secret:  %s\n", key.Secret())
	c.printf("  url:     %s\n", key.URL())
	if len(resp.BackupCodes) > 0 {
		c.printf("Backup codes (each works once, store them safely):\n")
		for _, code := range resp.BackupCodes {
			c.printf("  %s\n", code)
		}
	}
	c.printf("Confirm with a code from the app to finish setup.\n")
	return nil
}

// totpKey returns the otpauth key for the setup response. The API may send an
// otpauth URL or an image, so the URL is rebuilt from the secret when needed.
func totpKey(resp *auth.EnableTOTPResponse, account string) (*otp.Key, error) {
	if strings.HasPrefix(resp.QRCode, "otpauth://") {
		return otp.NewKeyFromURL(resp.QRCode)
	}
	if resp.Secret == "" {
		return nil, fmt.Errorf("totp setup: no secret: %w", xerrors.ErrUnexpectedResponse)
	}
	q := url.Values{}
	q.Set("secret", resp.Secret)
	q.Set("issuer", totpIssuer)
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + totpIssuer + ":" + account,
		RawQuery: q.Encode(),
	}
	return otp.NewKeyFromURL(u.String())
}

func (c *console) totpVerify(ctx context.Context, code string) error {
	if err := c.requireAdmin(ctx, "/admin/security"); err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: verification code is required", xerrors.ErrInvalidInput)
	}
	msg, err := c.session().VerifyTOTP(ctx, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	c.printf("%s\n", orDefault(msg, "Authenticator app enabled."))
	return nil
}

func (c *console) totpDisable(ctx context.Context) error {
	if err := c.requireAdmin(ctx, "/admin/security"); err != nil {
		return err
	}
	password, err := c.prompt.Secret("Password: ")
	if err != nil {
		return err
	}
	msg, err := c.session().DisableTOTP(ctx, password)
	if err != nil {
		return err
	}
	c.printf("%s\n", orDefault(msg, "Authenticator app disabled."))
	return nil
}

func (c *console) email2FA(ctx context.Context, enable bool) error {
	if err := c.requireAdmin(ctx, "/admin/security"); err != nil {
		return err
	}
	password, err := c.prompt.Secret("Password: ")
	if err != nil {
		return err
	}
	var msg string
	if enable {
		msg, err = c.session().EnableEmail2FA(ctx, password)
	} else {
		msg, err = c.session().DisableEmail2FA(ctx, password)
	}
	if err != nil {
		return err
	}
	c.printf("%s\n", orDefault(msg, "Email two-factor updated."))
	return nil
}

func (c *console) changePassword(ctx context.Context) error {
	if err := c.requireAdmin(ctx, "/admin/security"); err != nil {
		return err
	}
	current, err := c.prompt.Secret("Current password: ")
	if err != nil {
		return err
	}
	next, err := c.prompt.Secret("New password: ")
	if err != nil {
		return err
	}
	confirm, err := c.prompt.Secret("Confirm new password: ")
	if err != nil {
		return err
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", xerrors.ErrInvalidInput, minPasswordLength)
	}
	if next != confirm {
		return fmt.Errorf("%w: passwords do not match", xerrors.ErrInvalidInput)
	}
	msg, err := c.session().ChangePassword(ctx, current, next)
	if err != nil {
		return err
	}
	c.printf("%s\n", orDefault(msg, "Password changed."))
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
