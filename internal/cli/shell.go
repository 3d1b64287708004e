package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	xerrors "portfolio-console/internal/pkg/errors"
	"portfolio-console/internal/pkg/session"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// resendCooldown is the minimum gap between email code requests.
const resendCooldown = 60 * time.Second

const shellHelp = `Commands:
  login [user]         sign in
  verify CODE          complete two-factor verification
  resend               email a new verification code
  status               show the session
  refresh              rotate the access token
  totp enable|disable  manage the authenticator app
  totp verify CODE     finish authenticator setup
  email on|off         manage email two-factor
  password             change password
  logout               sign out
  exit                 leave the shell
`

func (c *CLI) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with automatic refresh and inactivity logout",
		Args:  cobra.NoArgs,
		RunE:  c.runShell,
	}
}

func (c *CLI) runShell(cmd *cobra.Command, _ []string) error {
	a, err := c.openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	sh := newShell(newConsole(a, &linerPrompter{line: line}, c.out), time.Now)
	unsubscribe := a.Session.Subscribe(sh.onEvent)
	defer unsubscribe()

	sh.con.printf("Type \"help\" for commands.\n")
	sh.con.status()

	ctx := cmd.Context()
	for {
		input, err := line.Prompt(sh.promptString())
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		a.Activity.Emit()

		if sh.exec(ctx, input) {
			return nil
		}
	}
}

// shell dispatches interactive commands against one console.
type shell struct {
	con    *console
	resend *rate.Limiter
	now    func() time.Time
}

func newShell(con *console, now func() time.Time) *shell {
	return &shell{
		con:    con,
		resend: rate.NewLimiter(rate.Every(resendCooldown), 1),
		now:    now,
	}
}

func (s *shell) promptString() string {
	state := s.con.session().Snapshot()
	switch {
	case state.IsAuthenticated():
		return state.User.Username + "> "
	case state.TempToken != "":
		return "2fa> "
	default:
		return "portfolio> "
	}
}

// onEvent reports logouts the user did not ask for.
func (s *shell) onEvent(ev session.Event) {
	switch ev.Reason {
	case session.ReasonInactivity:
		s.con.printf("\nSigned out after %s of inactivity.\n", s.con.app.Config.InactivityTimeout)
	case session.ReasonRefreshFailed, session.ReasonUserFailed:
		s.con.printf("\nSession expired. Sign in again.\n")
	case session.ReasonUnauthorized:
		s.con.printf("\nSession rejected by the server. Sign in again.\n")
	}
}

// exec runs one shell line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	var err error
	switch cmd {
	case "exit", "quit":
		return true
	case "help", "?":
		s.con.printf("%s", shellHelp)
	case "login":
		err = s.con.login(ctx, arg(0), true)
	case "verify":
		err = s.con.verify(ctx, arg(0))
	case "resend":
		err = s.resendCode(ctx)
	case "status", "whoami":
		s.con.status()
	case "refresh":
		err = s.con.refresh(ctx)
	case "logout":
		s.con.logout()
	case "totp":
		switch arg(0) {
		case "enable":
			err = s.con.totpEnable(ctx)
		case "verify":
			err = s.con.totpVerify(ctx, arg(1))
		case "disable":
			err = s.con.totpDisable(ctx)
		default:
			err = fmt.Errorf("%w: usage: totp enable|verify CODE|disable", xerrors.ErrInvalidInput)
		}
	case "email":
		switch arg(0) {
		case "on", "enable":
			err = s.con.email2FA(ctx, true)
		case "off", "disable":
			err = s.con.email2FA(ctx, false)
		default:
			err = fmt.Errorf("%w: usage: email on|off", xerrors.ErrInvalidInput)
		}
	case "password":
		err = s.con.changePassword(ctx)
	default:
		err = fmt.Errorf("%w: unknown command %q, try help", xerrors.ErrInvalidInput, cmd)
	}

	if err != nil {
		s.con.printf("error: %s\n", xerrors.MessageOrDefault(err, "request failed"))
	}
	return false
}

// resendCode asks for a new email code at most once per cooldown.
func (s *shell) resendCode(ctx context.Context) error {
	if s.con.session().TempToken() == "" {
		return xerrors.ErrNoTempToken
	}

	now := s.now()
	r := s.resend.ReserveN(now, 1)
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		s.con.printf("Wait %ds before requesting another code.\n", int(math.Ceil(wait.Seconds())))
		return nil
	}
	return s.con.requestCode(ctx)
}
