// internal/pkg/session/types.go
package session

import (
	"context"
	"time"

	"portfolio-console/internal/domain/auth"
)

// AuthAPI is the slice of the remote API the manager drives.
type AuthAPI interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	Verify2FA(ctx context.Context, req auth.Verify2FARequest) (*auth.LoginResponse, error)
	RequestEmailCode(ctx context.Context, tempToken string) (*auth.MessageResponse, error)
	Refresh(ctx context.Context) (*auth.RefreshResponse, error)
	Me(ctx context.Context) (*auth.User, error)

	EnableTOTP(ctx context.Context, password string) (*auth.EnableTOTPResponse, error)
	VerifyTOTP(ctx context.Context, code string) (*auth.MessageResponse, error)
	DisableTOTP(ctx context.Context, password string) (*auth.MessageResponse, error)
	EnableEmail2FA(ctx context.Context, password string) (*auth.MessageResponse, error)
	DisableEmail2FA(ctx context.Context, password string) (*auth.MessageResponse, error)
	ChangePassword(ctx context.Context, req auth.ChangePasswordRequest) (*auth.MessageResponse, error)
}

// Clock is the time source for expiry and inactivity decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Destination is where the caller should send the user next.
type Destination string

const (
	DestinationNone      Destination = ""
	DestinationVerify2FA Destination = "/private/user/me/verify-2fa"
	DestinationAdmin     Destination = "/admin"
	DestinationLogin     Destination = "/login"
	DestinationHome      Destination = "/"
)

// Reason names the transition that produced an Event.
type Reason string

const (
	ReasonLogin         Reason = "login"
	ReasonChallenge     Reason = "2fa_required"
	ReasonVerified      Reason = "2fa_verified"
	ReasonRefresh       Reason = "refresh"
	ReasonRestore       Reason = "restore"
	ReasonUserReloaded  Reason = "user_reloaded"
	ReasonLogout        Reason = "logout"
	ReasonInactivity    Reason = "inactivity"
	ReasonRefreshFailed Reason = "refresh_failed"
	ReasonUserFailed    Reason = "user_failed"
	ReasonUnauthorized  Reason = "unauthorized"
)

// State is a read-only copy of the session.
type State struct {
	AccessToken         string
	TempToken           string
	User                *auth.User
	Available2FAMethods []string
	LastActivity        time.Time
	Loading             bool
}

func (s State) IsAuthenticated() bool { return s.User != nil }

func (s State) IsAdmin() bool { return s.User != nil && s.User.IsSuperuser }

func (s State) Has2FA() bool { return s.User.Has2FA() }

// Event is delivered to subscribers after every session transition.
type Event struct {
	Reason      Reason
	Destination Destination
	State       State
}

// LoginResult tells the caller how a login step ended.
type LoginResult struct {
	Destination Destination
	Methods     []string
	User        *auth.User
}

// Persisted keys.
const (
	KeyAccessToken = "access_token"
	KeyUserData    = "user_data"
	KeyTempToken   = "temp_token"
)

var defaultMethods = []string{auth.MethodEmail}
