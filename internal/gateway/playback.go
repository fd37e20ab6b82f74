package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitsune-lab/syncstage/internal/source"
)

// control returns a handler that dispatches cap to whichever source is
// currently winning fusion, per spec §4.7: "delegates via C1 capabilities".
func (g *gateway) control(cap source.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		np := g.d.Fuser.Current()
		if np.IsIdle() {
			fail(c, http.StatusNotFound, "no active playback source")
			return
		}
		var args map[string]any
		if c.Request.ContentLength > 0 {
			_ = c.ShouldBindJSON(&args)
		}
		err := g.d.Registry.Dispatch(c.Request.Context(), np.SourceID, source.Command{Action: cap, Args: args})
		if err != nil {
			fail(c, http.StatusBadGateway, err.Error())
			return
		}
		ok(c, gin.H{})
	}
}

// getQueue handles GET /api/playback/queue. The queue's contents arrive
// asynchronously over the same channel the source reports state on (C6's
// track_data/position stream), not as a synchronous reply to the control
// command, so this only confirms the request reached a capable source.
func (g *gateway) getQueue(c *gin.Context) {
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		fail(c, http.StatusNotFound, "no active playback source")
		return
	}
	caps, found := g.d.Registry.Capabilities(np.SourceID)
	if !found || !source.HasCapability(caps, source.CapQueue) {
		fail(c, http.StatusNotImplemented, "active source does not support queue retrieval")
		return
	}
	err := g.d.Registry.Dispatch(c.Request.Context(), np.SourceID, source.Command{
		Action: source.CapQueue,
		Args:   map[string]any{"action": "get"},
	})
	if err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	ok(c, gin.H{"dispatched": true})
}

// getLiked handles GET /api/playback/liked for the current track.
func (g *gateway) getLiked(c *gin.Context) {
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		fail(c, http.StatusNotFound, "no track is currently playing")
		return
	}
	liked := false
	if np.Liked != nil {
		liked = *np.Liked
	}
	ok(c, gin.H{"track_key": np.TrackKey, "liked": liked})
}

type likedBody struct {
	TrackID string `json:"track_id"`
	Action  string `json:"action"`
}

// setLiked handles POST /api/playback/liked {track_id, action}.
func (g *gateway) setLiked(c *gin.Context) {
	var body likedBody
	if err := c.ShouldBindJSON(&body); err != nil || (body.Action != "like" && body.Action != "unlike") {
		fail(c, http.StatusBadRequest, `action must be "like" or "unlike"`)
		return
	}
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		fail(c, http.StatusNotFound, "no active playback source")
		return
	}
	err := g.d.Registry.Dispatch(c.Request.Context(), np.SourceID, source.Command{
		Action: source.CapLike,
		Args:   map[string]any{"action": body.Action, "track_id": body.TrackID},
	})
	if err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	ok(c, gin.H{"liked": body.Action == "like"})
}
