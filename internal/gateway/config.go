package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// getConfig handles GET /config: user-visible rendering settings, with URL
// query parameters overlaid on top of the persisted/env-overlaid global
// settings for this request only (spec §4.8 overlay order: env > URL query
// > persisted store > code default).
func (g *gateway) getConfig(c *gin.Context) {
	s := g.d.Settings.Global()
	env := g.d.Settings.EnvOverrides()

	if v := c.Query("blur_strength"); v != "" && env.BlurStrength == nil {
		if n, err := strconv.Atoi(v); err == nil {
			s.BlurStrength = n
		}
	}
	if v := c.Query("background_style"); v != "" && env.DefaultBackgroundStyle == nil {
		s.DefaultBackgroundStyle = v
	}
	if v := c.Query("visual_mode"); v != "" && env.VisualModeEnabled == nil {
		s.VisualModeEnabled = v == "true" || v == "1"
	}
	if v := c.Query("update_interval_ms"); v != "" && env.UpdateIntervalMs == nil {
		if n, err := strconv.Atoi(v); err == nil {
			s.UpdateIntervalMs = n
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"update_interval_ms":       s.UpdateIntervalMs,
		"blur_strength":            s.BlurStrength,
		"default_background_style": s.DefaultBackgroundStyle,
		"visual_mode_enabled":      s.VisualModeEnabled,
		"slideshow_interval_ms":    s.SlideshowIntervalMs,
	})
}
