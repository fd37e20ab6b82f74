package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// currentTrack handles GET /current-track: a read-only view of the fuser's
// current NowPlaying state (spec §4.7: "GETs are read-only against the
// broadcast NowPlaying snapshot").
func (g *gateway) currentTrack(c *gin.Context) {
	c.JSON(http.StatusOK, g.d.Fuser.Current())
}
