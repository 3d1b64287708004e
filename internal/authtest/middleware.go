package authtest

import (
	"net/http"
	"strings"

	"portfolio-console/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bearerAuth validates the access token and stores the user id in the context
func bearerAuth(verifier *jwt.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			unauthorized(c, "Not authenticated")
			return
		}

		claims, err := verifier.VerifyAccessToken(token)
		if err != nil {
			unauthorized(c, "Could not validate credentials")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("jti", claims.ID)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// mustGetUserID gets the user id set by bearerAuth or panics
func mustGetUserID(c *gin.Context) int64 {
	v, exists := c.Get("user_id")
	if !exists {
		panic("user_id not found in context")
	}
	return v.(int64)
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
				)
				respondError(c, http.StatusInternalServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}

// countingMiddleware records every hit per path and applies injected faults.
func (s *Server) countingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		s.mu.Lock()
		s.calls[path]++
		s.lastRequestID = c.GetHeader("X-Request-ID")
		status, failing := s.faults[path]
		s.mu.Unlock()

		if failing {
			respondError(c, status, "Injected failure")
			return
		}
		c.Next()
	}
}
