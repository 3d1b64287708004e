// internal/domain/auth/entity.go
package auth

// User is the authenticated principal as returned by /auth/me.
type User struct {
	ID              int64   `json:"id"`
	Email           string  `json:"email"`
	Username        string  `json:"username"`
	FullName        *string `json:"full_name"`
	IsActive        bool    `json:"is_active"`
	IsSuperuser     bool    `json:"is_superuser"`
	Email2FAEnabled bool    `json:"email_2fa_enabled"`
	TOTPEnabled     bool    `json:"totp_enabled"`
	CreatedAt       string  `json:"created_at,omitempty"`
	LastLogin       *string `json:"last_login"`
}

// Has2FA reports whether any second factor is enabled for the user.
func (u *User) Has2FA() bool {
	return u != nil && (u.Email2FAEnabled || u.TOTPEnabled)
}

// DisplayName prefers the full name, then the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Clone returns a deep copy so callers cannot mutate session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.FullName != nil {
		v := *u.FullName
		c.FullName = &v
	}
	if u.LastLogin != nil {
		v := *u.LastLogin
		c.LastLogin = &v
	}
	return &c
}

// Second-factor methods advertised by the API.
const (
	MethodEmail  = "email"
	MethodTOTP   = "totp"
	MethodBackup = "backup"
)
