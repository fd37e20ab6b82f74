package model

import (
	"time"

	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// BackgroundStyle selects how the client should render the now-playing
// background behind album art.
type BackgroundStyle string

const (
	BackgroundBlur  BackgroundStyle = "blur"
	BackgroundSoft  BackgroundStyle = "soft"
	BackgroundSharp BackgroundStyle = "sharp"
	BackgroundNone  BackgroundStyle = "none"
)

// Valid reports whether s is one of the four recognized styles.
func (s BackgroundStyle) Valid() bool {
	switch s {
	case BackgroundBlur, BackgroundSoft, BackgroundSharp, BackgroundNone:
		return true
	default:
		return false
	}
}

// TrackPreferences holds per-track overrides a listener has pinned: which
// lyrics/art provider to prefer over the default tiered selection, and how
// the background should render. Nil pointers mean "no override, use
// default".
type TrackPreferences struct {
	TrackKey trackkey.Key `json:"track_key"`

	PreferredLyricsProvider *trackkey.ProviderID `json:"preferred_lyrics_provider,omitempty"`
	PreferredArtProvider    *trackkey.ProviderID `json:"preferred_art_provider,omitempty"`
	BackgroundStyle         BackgroundStyle       `json:"background_style,omitempty"`

	LastVerifiedAt time.Time `json:"last_verified_at"`
}
