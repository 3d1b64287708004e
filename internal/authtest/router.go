package authtest

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter(r *gin.Engine, h *authHandler) {
	r.Use(recoveryMiddleware(s.logger), s.countingMiddleware())

	authGroup := r.Group("/auth")
	{
		// Public endpoints
		authGroup.POST("/login", h.Login)
		authGroup.POST("/verify-2fa", h.Verify2FA)
		authGroup.POST("/request-email-code", h.RequestEmailCode)

		// Protected endpoints
		protected := authGroup.Group("")
		protected.Use(bearerAuth(s.jwt.Verifier))
		{
			protected.POST("/refresh", h.Refresh)
			protected.GET("/me", h.Me)
			protected.POST("/enable-totp", h.EnableTOTP)
			protected.POST("/verify-totp", h.VerifyTOTP)
			protected.POST("/disable-totp", h.DisableTOTP)
			protected.POST("/enable-email-2fa", h.EnableEmail2FA)
			protected.POST("/disable-email-2fa", h.DisableEmail2FA)
			protected.POST("/change-password", h.ChangePassword)
		}
	}
}
