package session

import (
	"context"

	"portfolio-console/internal/domain/auth"
	xerrors "portfolio-console/internal/pkg/errors"

	"go.uber.org/zap"
)

// Second-factor and password management. These pass through to the API and
// reload the user where the change alters its 2FA flags.

func (m *Manager) requireSession() error {
	if m.AccessToken() == "" {
		return xerrors.ErrNotAuthenticated
	}
	return nil
}

func (m *Manager) EnableTOTP(ctx context.Context, password string) (*auth.EnableTOTPResponse, error) {
	if err := m.requireSession(); err != nil {
		return nil, err
	}
	return m.api.EnableTOTP(ctx, password)
}

func (m *Manager) VerifyTOTP(ctx context.Context, code string) (string, error) {
	if err := m.requireSession(); err != nil {
		return "", err
	}
	resp, err := m.api.VerifyTOTP(ctx, code)
	if err != nil {
		return "", err
	}
	return resp.Message, m.reloadAfter(ctx, "verify-totp")
}

func (m *Manager) DisableTOTP(ctx context.Context, password string) (string, error) {
	if err := m.requireSession(); err != nil {
		return "", err
	}
	resp, err := m.api.DisableTOTP(ctx, password)
	if err != nil {
		return "", err
	}
	return resp.Message, m.reloadAfter(ctx, "disable-totp")
}

func (m *Manager) EnableEmail2FA(ctx context.Context, password string) (string, error) {
	if err := m.requireSession(); err != nil {
		return "", err
	}
	resp, err := m.api.EnableEmail2FA(ctx, password)
	if err != nil {
		return "", err
	}
	return resp.Message, m.reloadAfter(ctx, "enable-email-2fa")
}

func (m *Manager) DisableEmail2FA(ctx context.Context, password string) (string, error) {
	if err := m.requireSession(); err != nil {
		return "", err
	}
	resp, err := m.api.DisableEmail2FA(ctx, password)
	if err != nil {
		return "", err
	}
	return resp.Message, m.reloadAfter(ctx, "disable-email-2fa")
}

func (m *Manager) ChangePassword(ctx context.Context, current, next string) (string, error) {
	if err := m.requireSession(); err != nil {
		return "", err
	}
	resp, err := m.api.ChangePassword(ctx, auth.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (m *Manager) reloadAfter(ctx context.Context, op string) error {
	if err := m.LoadCurrentUser(ctx); err != nil {
		m.logger.Warn("failed to reload user", zap.String("after", op), zap.Error(err))
		return err
	}
	return nil
}
