package authtest

import (
	"net/http"

	"portfolio-console/internal/domain/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type authHandler struct {
	server  *Server
	service *authService
	logger  *zap.Logger
}

func (h *authHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.login(req.Identifier, req.Password)
	if err != nil {
		h.logger.Info("login failed", zap.String("identifier", req.Identifier), zap.Error(err))
		unauthorized(c, err.Error())
		return
	}
	if h.server.omitUser() {
		resp.User = nil
	}
	c.JSON(http.StatusOK, resp)
}

func (h *authHandler) Verify2FA(c *gin.Context) {
	var req auth.Verify2FARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.verify2FA(req.TempToken, req.Code)
	if err != nil {
		unauthorized(c, err.Error())
		return
	}
	if h.server.omitUser() {
		resp.User = nil
	}
	c.JSON(http.StatusOK, resp)
}

func (h *authHandler) RequestEmailCode(c *gin.Context) {
	var req auth.EmailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.requestEmailCode(req.TempToken); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondMessage(c, "Verification code sent")
}

func (h *authHandler) Refresh(c *gin.Context) {
	resp, err := h.service.refresh(mustGetUserID(c))
	if err != nil {
		unauthorized(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, auth.RefreshResponse{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		User:        resp.User,
	})
}

func (h *authHandler) Me(c *gin.Context) {
	user, ok := h.service.user(mustGetUserID(c))
	if !ok {
		respondError(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *authHandler) EnableTOTP(c *gin.Context) {
	var req auth.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.enableTOTP(mustGetUserID(c), req.Password)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *authHandler) VerifyTOTP(c *gin.Context) {
	var req auth.VerifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.verifyTOTP(mustGetUserID(c), req.Code); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondMessage(c, "TOTP enabled successfully")
}

func (h *authHandler) DisableTOTP(c *gin.Context) {
	var req auth.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.disableTOTP(mustGetUserID(c), req.Password); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondMessage(c, "TOTP disabled successfully")
}

func (h *authHandler) EnableEmail2FA(c *gin.Context) {
	h.setEmail2FA(c, true)
}

func (h *authHandler) DisableEmail2FA(c *gin.Context) {
	h.setEmail2FA(c, false)
}

func (h *authHandler) setEmail2FA(c *gin.Context, enabled bool) {
	var req auth.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.setEmail2FA(mustGetUserID(c), req.Password, enabled); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if enabled {
		respondMessage(c, "Email 2FA enabled successfully")
		return
	}
	respondMessage(c, "Email 2FA disabled successfully")
}

func (h *authHandler) ChangePassword(c *gin.Context) {
	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.changePassword(mustGetUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondMessage(c, "Password changed successfully")
}
