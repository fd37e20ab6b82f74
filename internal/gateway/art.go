package gateway

import (
	"math/rand"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kitsune-lab/syncstage/internal/art"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

func (g *gateway) blobPath(hash string) string {
	if g.d.DataDir == "" || hash == "" {
		return ""
	}
	return filepath.Join(g.d.DataDir, "art-blobs", hash)
}

// albumArtOptions handles GET /api/album-art/options.
func (g *gateway) albumArtOptions(c *gin.Context) {
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		ok(c, gin.H{"options": []gin.H{}})
		return
	}
	served, entries, err := g.d.AlbumArt.Resolve(c.Request.Context(), np.TrackKey, albumArtQueryFor(np))
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	options := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		options = append(options, gin.H{
			"provider_id":   e.ProviderID,
			"resolution_px": e.ResolutionPx,
			"content_hash":  e.ContentHash,
			"is_preferred":  e.ContentHash == served.ContentHash && e.ProviderID == served.ProviderID,
		})
	}
	ok(c, gin.H{"options": options})
}

func albumArtQueryFor(np model.NowPlaying) art.AlbumArtQuery {
	q := art.AlbumArtQuery{
		TrackKey: np.TrackKey,
		Artist:   np.Artist,
		Title:    np.Title,
		Album:    np.Album,
	}
	if np.Provenance != nil {
		q.ServiceNativeID = np.Provenance["native_id"]
	}
	if path, ok := np.Extra["file_path"].(string); ok {
		q.LocalFilePath = path
	}
	return q
}

type albumArtPreferenceBody struct {
	Provider string `json:"provider"`
}

// setAlbumArtPreference handles POST /api/album-art/preference.
func (g *gateway) setAlbumArtPreference(c *gin.Context) {
	var body albumArtPreferenceBody
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
		p.PreferredArtProvider = &providerID
	}); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	_, entries, err := g.d.AlbumArt.Resolve(c.Request.Context(), np.TrackKey, albumArtQueryFor(np))
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	token := ""
	for _, e := range entries {
		if e.ProviderID == providerID {
			token = e.ContentHash
			break
		}
	}
	ok(c, gin.H{"cache_bust_token": token})
}

type backgroundStyleBody struct {
	Style string `json:"style"`
}

// setBackgroundStyle handles POST /api/album-art/background-style.
func (g *gateway) setBackgroundStyle(c *gin.Context) {
	var body backgroundStyleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	style := model.BackgroundStyle(body.Style)
	if !style.Valid() {
		fail(c, http.StatusBadRequest, "unrecognized background style")
		return
	}
	np := g.d.Fuser.Current()
	if np.IsIdle() {
		fail(c, http.StatusNotFound, "no track is currently playing")
		return
	}
	if _, err := g.d.Settings.SetTrackPreference(np.TrackKey, func(p *model.TrackPreferences) {
		p.BackgroundStyle = style
	}); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, gin.H{"style": string(style)})
}

// serveArtifact handles GET /cover-art/:hash and GET /artist-images/:hash,
// both served from C5's shared content-addressed blob store.
func (g *gateway) serveArtifact(c *gin.Context) {
	path := g.blobPath(c.Param("hash"))
	if path == "" {
		fail(c, http.StatusNotFound, "artifact not found")
		return
	}
	c.File(path)
}

// slideshowRandomImages handles GET /api/slideshow/random-images?limit=N.
func (g *gateway) slideshowRandomImages(c *gin.Context) {
	np := g.d.Fuser.Current()
	if np.IsIdle() || np.Artist == "" {
		ok(c, gin.H{"images": []string{}})
		return
	}

	limit := 10
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	artistKey := trackkey.ArtistKeyFromName(np.Artist)
	entries, err := g.d.ArtistImages.Resolve(c.Request.Context(), art.ArtistImageQuery{ArtistKey: artistKey, Name: np.Artist})
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	shuffled := append([]model.ArtifactEntry(nil), entries...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if len(shuffled) > limit {
		shuffled = shuffled[:limit]
	}

	urls := make([]string, 0, len(shuffled))
	for _, e := range shuffled {
		urls = append(urls, "/artist-images/"+e.ContentHash)
	}
	ok(c, gin.H{"images": urls})
}
