package model

import "time"

// Settings is the single process-wide scalar settings record C8 loads on
// start and mutates atomically. Fields mirror the dotted keys stored in the
// settings document (e.g. "update_interval_ms" <-> UpdateIntervalMs).
type Settings struct {
	UpdateIntervalMs      int      `json:"update_interval_ms"`
	BlurStrength          int      `json:"blur_strength"`
	DefaultBackgroundStyle string  `json:"default_background_style"`
	VisualModeEnabled     bool     `json:"visual_mode_enabled"`
	SlideshowIntervalMs   int      `json:"slideshow_interval_ms"`

	SourceBlocklist  []string `json:"source_blocklist,omitempty"`
	ProviderBlocklist []string `json:"provider_blocklist,omitempty"`

	AdminAuthEnabled bool `json:"admin_auth_enabled"`
}

// DefaultSettings returns the code-default record used when nothing has
// been persisted yet, the bottom tier of C8's overlay order (env > URL
// query > persisted store > this default).
func DefaultSettings() Settings {
	return Settings{
		UpdateIntervalMs:       200,
		BlurStrength:           40,
		DefaultBackgroundStyle: string(BackgroundBlur),
		VisualModeEnabled:      true,
		SlideshowIntervalMs:    8000,
	}
}

// SettingsChange is published on C8's notification channel whenever a
// mutation commits, so subscribers can re-evaluate without polling.
type SettingsChange struct {
	Key      string
	At       time.Time
}
