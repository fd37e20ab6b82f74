package gateway

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kitsune-lab/syncstage/internal/auth"
)

// securityHeaders adds standard HTTP security headers to every response,
// generalized from the teacher's SecurityHeadersMiddleware with a
// connect-src allowance for the /ws/spicetify and /events WebSocket
// upgrades this gateway also serves.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Header("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self'; connect-src 'self' ws: wss:; font-src 'self'")
		c.Next()
	}
}

// AuthRequired returns a gin middleware enforcing JWT authentication via the
// Authorization: Bearer <token> header, reused verbatim from the teacher's
// AuthRequired for C12's admin guard.
func AuthRequired(a *auth.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, gin.H{"status": "error", "error": "authentication required"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(401, gin.H{"status": "error", "error": "authentication required"})
			return
		}
		if _, err := a.ValidateToken(strings.TrimSpace(parts[1])); err != nil {
			c.AbortWithStatusJSON(401, gin.H{"status": "error", "error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

// requestLogger emits one structured slog line per request, replacing gin's
// default text logger with the engine's JSON handler.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
