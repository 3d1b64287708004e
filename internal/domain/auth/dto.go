// internal/domain/auth/dto.go
package auth

// LoginRequest for password login
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse is returned by both /auth/login and /auth/verify-2fa
type LoginResponse struct {
	AccessToken         string   `json:"access_token"`
	TokenType           string   `json:"token_type"`
	Requires2FA         bool     `json:"requires_2fa"`
	TempToken           string   `json:"temp_token,omitempty"`
	User                *User    `json:"user,omitempty"`
	Available2FAMethods []string `json:"available_2fa_methods,omitempty"`
}

// Verify2FARequest completes a pending two-factor challenge
type Verify2FARequest struct {
	TempToken string `json:"temp_token" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// EmailCodeRequest asks the server to e-mail a fresh code
type EmailCodeRequest struct {
	TempToken string `json:"temp_token" binding:"required"`
}

// RefreshResponse from /auth/refresh
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}

// MessageResponse is the generic {"message": ...} body
type MessageResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// PasswordRequest re-confirms the password for 2FA changes
type PasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// EnableTOTPResponse carries the authenticator setup payload
type EnableTOTPResponse struct {
	Secret      string   `json:"secret"`
	QRCode      string   `json:"qr_code"`
	BackupCodes []string `json:"backup_codes"`
}

// VerifyTOTPRequest confirms authenticator setup
type VerifyTOTPRequest struct {
	Code string `json:"code" binding:"required"`
}

// ChangePasswordRequest for password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}
