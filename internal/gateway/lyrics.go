package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitsune-lab/syncstage/internal/lyrics"
	"github.com/kitsune-lab/syncstage/internal/model"
)

func lyricsQueryFor(np model.NowPlaying) lyrics.Query {
	q := lyrics.Query{Artist: np.Artist, Title: np.Title, DurationMs: np.DurationMs}
	if np.Provenance != nil {
		q.ServiceNativeID = np.Provenance["native_id"]
	}
	return q
}

func lyricsResponse(doc model.LyricsDoc, np model.NowPlaying) gin.H {
	body := gin.H{
		"lyrics":          doc,
		"provider":        doc.ProviderID,
		"is_instrumental": doc.Variant == model.VariantInstrumental,
		"has_lyrics":      doc.HasText(),
	}
	if np.Extra != nil {
		if colors, ok := np.Extra["colors"]; ok {
			body["colors"] = colors
		}
	}
	return body
}

// getLyrics handles GET /lyrics for the currently playing track.
func (g *gateway) getLyrics(c *gin.Context) {
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		fail(c, http.StatusNotFound, "no track is currently playing")
		return
	}
	doc, _, err := g.d.Lyrics.Resolve(c.Request.Context(), np.TrackKey, lyricsQueryFor(np))
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, lyricsResponse(doc, np))
}

// providersAvailable handles GET /api/providers/available.
func (g *gateway) providersAvailable(c *gin.Context) {
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		ok(c, gin.H{"providers": []gin.H{}})
		return
	}
	statuses := g.d.Lyrics.ProviderStatuses(np.TrackKey)
	providers := make([]gin.H, 0, len(statuses))
	for _, s := range statuses {
		providers = append(providers, gin.H{
			"id":         s.ID,
			"priority":   s.Priority,
			"is_current": s.Current,
			"cached":     s.Cached,
		})
	}
	ok(c, gin.H{"providers": providers})
}

type providerPreferenceBody struct {
	Provider string `json:"provider"`
}

// setProviderPreference handles POST /api/providers/preference.
func (g *gateway) setProviderPreference(c *gin.Context) {
	var body providerPreferenceBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Provider == "" {
		fail(c, http.StatusBadRequest, "provider is required")
		return
	}
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		fail(c, http.StatusNotFound, "no track is currently playing")
		return
	}

	providerID := trackkeyProviderID(body.Provider)
	if _, err := g.d.Settings.SetTrackPreference(np.TrackKey, func(p *model.TrackPreferences) {
		p.PreferredLyricsProvider = &providerID
	}); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	if doc, cached := g.d.Lyrics.SetPreference(np.TrackKey, providerID); cached {
		ok(c, lyricsResponse(doc, np))
		return
	}
	doc, _, err := g.d.Lyrics.Resolve(c.Request.Context(), np.TrackKey, lyricsQueryFor(np))
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, lyricsResponse(doc, np))
}

// clearProviderPreference handles DELETE /api/providers/preference.
func (g *gateway) clearProviderPreference(c *gin.Context) {
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		fail(c, http.StatusNotFound, "no track is currently playing")
		return
	}
	if _, err := g.d.Settings.SetTrackPreference(np.TrackKey, func(p *model.TrackPreferences) {
		p.PreferredLyricsProvider = nil
	}); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	doc, _, err := g.d.Lyrics.Resolve(c.Request.Context(), np.TrackKey, lyricsQueryFor(np))
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, lyricsResponse(doc, np))
}
