package model

import (
	"time"

	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// NoneSourceID is the sentinel source id used on an Idle NowPlaying.
const NoneSourceID trackkey.SourceID = "none"

// NowPlaying is the single fused state the server exposes. Exactly one
// instance exists process-wide, owned and mutated only by the fuser (C2);
// every other component holds read-only copies.
type NowPlaying struct {
	PlaybackSnapshot

	// WinningSourceID is the source_id of the snapshot that won fusion,
	// which may differ conceptually from SourceID after hybrid enrichment
	// copies fields from a non-winning candidate (SourceID is always kept
	// as the winner's, WinningSourceID is kept identical for clarity at the
	// JSON boundary).
	WinningSourceID trackkey.SourceID `json:"winning_source_id"`

	AlbumArtURL     string   `json:"album_art_url,omitempty"`
	ArtistImageURLs []string `json:"artist_image_urls,omitempty"`
	BackgroundStyle string   `json:"background_style,omitempty"`

	IsInstrumental *bool               `json:"is_instrumental,omitempty"`
	HasLyrics      *bool               `json:"has_lyrics,omitempty"`
	Provider       *trackkey.ProviderID `json:"provider,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// Idle returns the NowPlaying value published when no candidate source
// exists: all text fields empty, source_id = none.
func Idle() NowPlaying {
	return NowPlaying{
		PlaybackSnapshot: PlaybackSnapshot{
			SourceID:  NoneSourceID,
			SampledAt: time.Now(),
		},
		WinningSourceID: NoneSourceID,
		PublishedAt:     time.Now(),
	}
}

// IsIdle reports whether np represents the Idle state.
func (np NowPlaying) IsIdle() bool {
	return np.SourceID == NoneSourceID
}

// positionEpsilonMs is the small tolerance below which a position_ms change
// alone does not count as an "observable field changed" for republication
// purposes (spec §4.2: "by any observable field changing beyond a small
// epsilon for position_ms").
const positionEpsilonMs = int64(750)

// DiffersFrom reports whether np should be republished relative to prev:
// a TrackKey change, a change in is_playing, title, artist, album,
// album_art_url, winning_source_id, artist_image_urls, background_style,
// liked, shuffle, is_instrumental, has_lyrics or provider, or position_ms
// moving beyond the position epsilon. artists, album_art_uri, duration_ms,
// repeat, volume, provenance and extra are not compared, so a change in
// only those fields does not make np differ from prev.
func (np NowPlaying) DiffersFrom(prev NowPlaying) bool {
	if np.TrackKey != prev.TrackKey {
		return true
	}
	if np.IsPlaying != prev.IsPlaying {
		return true
	}
	if np.Title != prev.Title || np.Artist != prev.Artist || np.Album != prev.Album {
		return true
	}
	if np.AlbumArtURL != prev.AlbumArtURL {
		return true
	}
	if np.WinningSourceID != prev.WinningSourceID {
		return true
	}
	if !stringSlicesEqual(np.ArtistImageURLs, prev.ArtistImageURLs) {
		return true
	}
	if np.BackgroundStyle != prev.BackgroundStyle {
		return true
	}
	if !boolPtrEqual(np.Liked, prev.Liked) || !boolPtrEqual(np.Shuffle, prev.Shuffle) {
		return true
	}
	if !boolPtrEqual(np.IsInstrumental, prev.IsInstrumental) || !boolPtrEqual(np.HasLyrics, prev.HasLyrics) {
		return true
	}
	if providerPtrDiffers(np.Provider, prev.Provider) {
		return true
	}
	return positionDiffers(np.PositionMs, prev.PositionMs)
}

func positionDiffers(a, b *int64) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	if a == nil {
		return false
	}
	d := *a - *b
	if d < 0 {
		d = -d
	}
	return d > positionEpsilonMs
}

func boolPtrEqual(a, b *bool) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func providerPtrDiffers(a, b *trackkey.ProviderID) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	return a != nil && *a != *b
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
