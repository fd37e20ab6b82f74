// Package gateway implements the Client Gateway (C7): the gin HTTP/WS
// surface browsers and the tray UI talk to. It holds no state of its own —
// every handler reads from or mutates one of C1/C2/C4/C5/C6/C8 directly,
// mirroring the thin gin handler layer the teacher's handler package uses
// over its own services.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitsune-lab/syncstage/internal/art"
	"github.com/kitsune-lab/syncstage/internal/auth"
	"github.com/kitsune-lab/syncstage/internal/fuser"
	"github.com/kitsune-lab/syncstage/internal/lyrics"
	"github.com/kitsune-lab/syncstage/internal/settings"
	"github.com/kitsune-lab/syncstage/internal/source"
	"github.com/kitsune-lab/syncstage/internal/telemetry"
)

// Deps wires every subsystem the gateway fronts. Auth is nil when admin
// auth is disabled (spec §4.12: no ADMIN_USERNAME/ADMIN_PASSWORD set).
type Deps struct {
	Registry     *source.Registry
	Fuser        *fuser.Fuser
	Broadcaster  *fuser.Broadcaster
	Lyrics       *lyrics.Resolver
	AlbumArt     *art.AlbumArtResolver
	ArtistImages *art.ArtistImageResolver
	Settings     *settings.Store
	Bridge       http.Handler
	Auth         *auth.Auth
	Metrics      *telemetry.Metrics
	// DataDir is the root C5 stores content-addressed blobs under
	// (dataDir/art-blobs/<hash>), used to serve /cover-art and
	// /artist-images by hash.
	DataDir string
	Logger  *slog.Logger
}

// NewRouter builds the gin engine with every route from spec §4.7 plus the
// ambient /metrics endpoint.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	g := &gateway{d: d}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger), securityHeaders())

	r.GET("/current-track", g.currentTrack)
	r.GET("/lyrics", g.getLyrics)
	r.GET("/config", g.getConfig)

	r.GET("/api/providers/available", g.providersAvailable)
	r.POST("/api/providers/preference", g.guard(g.setProviderPreference))
	r.DELETE("/api/providers/preference", g.guard(g.clearProviderPreference))

	r.GET("/api/album-art/options", g.albumArtOptions)
	r.POST("/api/album-art/preference", g.guard(g.setAlbumArtPreference))
	r.POST("/api/album-art/background-style", g.guard(g.setBackgroundStyle))

	r.POST("/api/playback/play-pause", g.guard(g.control(source.CapPlayPause)))
	r.POST("/api/playback/next", g.guard(g.control(source.CapNext)))
	r.POST("/api/playback/previous", g.guard(g.control(source.CapPrevious)))
	r.GET("/api/playback/queue", g.getQueue)
	r.GET("/api/playback/liked", g.getLiked)
	r.POST("/api/playback/liked", g.guard(g.setLiked))

	r.GET("/api/slideshow/random-images", g.slideshowRandomImages)
	r.GET("/cover-art/:hash", g.serveArtifact)
	r.GET("/artist-images/:hash", g.serveArtifact)

	if d.Auth != nil {
		r.POST("/api/auth/login", g.login)
	}

	r.GET("/ws/spicetify", gin.WrapH(d.Bridge))
	r.GET("/events", g.events)

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	return r
}

// gateway holds the Deps every handler file's methods are defined against;
// the /events upgrader is the package-level eventsUpgrader.
type gateway struct {
	d Deps
}

// guard wraps a handler with admin-auth middleware when C12 is enabled,
// otherwise passes the request straight through (spec §4.12: "otherwise the
// gateway runs open").
func (g *gateway) guard(h gin.HandlerFunc) gin.HandlerFunc {
	if g.d.Auth == nil {
		return h
	}
	authRequired := AuthRequired(g.d.Auth)
	return func(c *gin.Context) {
		authRequired(c)
		if c.IsAborted() {
			return
		}
		h(c)
	}
}

func ok(c *gin.Context, body gin.H) {
	body["status"] = "ok"
	c.JSON(http.StatusOK, body)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": "error", "error": msg})
}
