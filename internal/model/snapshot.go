// Package model holds the data types shared across the engine: the
// transient PlaybackSnapshot produced by sources, the single fused
// NowPlaying state, LyricsDoc variants, cached artifact records, and
// per-track preferences. None of these types own any behavior beyond small
// validation/derivation helpers — ownership and mutation rules live in the
// components that hold them (C1/C2/C8 per the concurrency model).
package model

import (
	"time"

	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// PlaybackSnapshot is one sample emitted by a source.
type PlaybackSnapshot struct {
	SourceID   trackkey.SourceID `json:"source_id"`
	SampledAt  time.Time         `json:"sampled_at"`
	TrackKey   trackkey.Key      `json:"track_key"`
	Title      string            `json:"title"`
	Artist     string            `json:"artist"`
	Artists    []string          `json:"artists,omitempty"`
	Album      string            `json:"album,omitempty"`
	AlbumArtURI string           `json:"album_art_uri,omitempty"`
	DurationMs *int64            `json:"duration_ms,omitempty"`
	PositionMs *int64            `json:"position_ms,omitempty"`
	IsPlaying  bool              `json:"is_playing"`
	Liked      *bool             `json:"liked,omitempty"`
	Shuffle    *bool             `json:"shuffle,omitempty"`
	Repeat     *int              `json:"repeat,omitempty"`
	Volume     *int              `json:"volume,omitempty"`
	Provenance map[string]string `json:"provenance,omitempty"`
	Extra      map[string]any    `json:"extra,omitempty"`

	// Priority is the configured priority of the emitting source, copied in
	// at emission time so the fuser does not need a side lookup.
	Priority int `json:"-"`
	// PausedTimeout is the emitting source's configured idle timeout; zero
	// means "sticky forever" per spec.
	PausedTimeout time.Duration `json:"-"`
}

// Clamp enforces 0 <= position_ms <= duration_ms when both are known,
// clamping out-of-range values rather than rejecting the snapshot.
func (s *PlaybackSnapshot) Clamp() {
	if s.PositionMs == nil {
		return
	}
	p := *s.PositionMs
	if p < 0 {
		p = 0
	}
	if s.DurationMs != nil && p > *s.DurationMs {
		p = *s.DurationMs
	}
	s.PositionMs = &p
}

// Valid reports whether the snapshot satisfies the title-non-empty
// invariant; a source reporting is_playing=true with an empty title is
// rejected by the registry before it ever reaches the fuser.
func (s *PlaybackSnapshot) Valid() bool {
	return s.Title != ""
}

// ExtrapolatedPositionMs returns the position implied by the snapshot's
// recorded position advanced by the wall-clock time elapsed since
// sampledAt, clamped to duration_ms if known. Used by sources (notably the
// Spicetify bridge) whose position reports arrive at a lower rate than
// clients poll.
func (s *PlaybackSnapshot) ExtrapolatedPositionMs(now time.Time) *int64 {
	if s.PositionMs == nil {
		return nil
	}
	if !s.IsPlaying {
		p := *s.PositionMs
		return &p
	}
	elapsed := now.Sub(s.SampledAt).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	p := *s.PositionMs + elapsed
	if s.DurationMs != nil && p > *s.DurationMs {
		p = *s.DurationMs
	}
	return &p
}
