package gateway

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitsune-lab/syncstage/internal/auth"
)

// login handles POST /api/auth/login, reused from the teacher's
// AuthHandlers.Login almost verbatim.
func (g *gateway) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Username) == 0 || len(body.Username) > 256 ||
		len(body.Password) == 0 || len(body.Password) > 256 {
		fail(c, http.StatusBadRequest, "invalid credentials format")
		return
	}

	token, err := g.d.Auth.Authenticate(body.Username, body.Password, c.Request.RemoteAddr)
	if err != nil {
		g.d.Logger.Warn("failed admin login attempt", "remote", c.Request.RemoteAddr, "error_type", err.Error())
		if err == auth.ErrRateLimited {
			remaining := g.d.Auth.RemainingLockout(c.Request.RemoteAddr)
			c.Header("Retry-After", fmt.Sprintf("%d", int(remaining.Seconds())))
			fail(c, http.StatusTooManyRequests, "too many login attempts, please try again later")
			return
		}
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	g.d.Logger.Info("admin logged in", slog.String("username", body.Username), "remote", c.Request.RemoteAddr)
	ok(c, gin.H{"token": token, "username": body.Username})
}
