package api

import (
	"context"
	"net/http"

	"portfolio-console/internal/domain/auth"
)

// Auth endpoint paths, relative to the API root.
const (
	PathLogin            = "/auth/login"
	PathVerify2FA        = "/auth/verify-2fa"
	PathRequestEmailCode = "/auth/request-email-code"
	PathRefresh          = "/auth/refresh"
	PathMe               = "/auth/me"
	PathEnableTOTP       = "/auth/enable-totp"
	PathVerifyTOTP       = "/auth/verify-totp"
	PathDisableTOTP      = "/auth/disable-totp"
	PathEnableEmail2FA   = "/auth/enable-email-2fa"
	PathDisableEmail2FA  = "/auth/disable-email-2fa"
	PathChangePassword   = "/auth/change-password"
)

func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	var resp auth.LoginResponse
	if err := c.Do(ctx, http.MethodPost, PathLogin, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Verify2FA(ctx context.Context, req auth.Verify2FARequest) (*auth.LoginResponse, error) {
	var resp auth.LoginResponse
	if err := c.Do(ctx, http.MethodPost, PathVerify2FA, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RequestEmailCode(ctx context.Context, tempToken string) (*auth.MessageResponse, error) {
	var resp auth.MessageResponse
	if err := c.Do(ctx, http.MethodPost, PathRequestEmailCode, auth.EmailCodeRequest{TempToken: tempToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Refresh(ctx context.Context) (*auth.RefreshResponse, error) {
	var resp auth.RefreshResponse
	if err := c.Do(ctx, http.MethodPost, PathRefresh, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	var user auth.User
	if err := c.Do(ctx, http.MethodGet, PathMe, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) EnableTOTP(ctx context.Context, password string) (*auth.EnableTOTPResponse, error) {
	var resp auth.EnableTOTPResponse
	if err := c.Do(ctx, http.MethodPost, PathEnableTOTP, auth.PasswordRequest{Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) VerifyTOTP(ctx context.Context, code string) (*auth.MessageResponse, error) {
	return c.message(ctx, PathVerifyTOTP, auth.VerifyTOTPRequest{Code: code})
}

func (c *Client) DisableTOTP(ctx context.Context, password string) (*auth.MessageResponse, error) {
	return c.message(ctx, PathDisableTOTP, auth.PasswordRequest{Password: password})
}

func (c *Client) EnableEmail2FA(ctx context.Context, password string) (*auth.MessageResponse, error) {
	return c.message(ctx, PathEnableEmail2FA, auth.PasswordRequest{Password: password})
}

func (c *Client) DisableEmail2FA(ctx context.Context, password string) (*auth.MessageResponse, error) {
	return c.message(ctx, PathDisableEmail2FA, auth.PasswordRequest{Password: password})
}

func (c *Client) ChangePassword(ctx context.Context, req auth.ChangePasswordRequest) (*auth.MessageResponse, error) {
	return c.message(ctx, PathChangePassword, req)
}

func (c *Client) message(ctx context.Context, path string, body interface{}) (*auth.MessageResponse, error) {
	var resp auth.MessageResponse
	if err := c.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
