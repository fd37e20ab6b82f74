package model

import (
	"time"

	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// ArtifactKind distinguishes album art from artist images, since the two
// share the same cache/storage shape but are keyed differently (TrackKey vs
// ArtistKey).
type ArtifactKind string

const (
	ArtifactAlbumArt    ArtifactKind = "album_art"
	ArtifactArtistImage ArtifactKind = "artist_image"
)

// ArtifactEntry is one cached image artifact: either a track's album art or
// an artist's image, content-addressed on disk.
type ArtifactEntry struct {
	Kind ArtifactKind `json:"kind"`

	TrackKey  trackkey.Key       `json:"track_key,omitempty"`
	ArtistKey trackkey.ArtistKey `json:"artist_key,omitempty"`

	ProviderID    trackkey.ProviderID `json:"provider_id"`
	ResolutionPx  int                 `json:"resolution_px,omitempty"`
	ContentHash   string              `json:"content_hash"`
	StoredPath    string              `json:"stored_path"`
	SourceURL     string              `json:"source_url,omitempty"`
	FetchedAt     time.Time           `json:"fetched_at"`
}

// NotFoundArtifact marks a key as having no art available from any
// provider, cached with a short TTL like lyrics NotFound.
func NotFoundArtifact(kind ArtifactKind) ArtifactEntry {
	return ArtifactEntry{Kind: kind, FetchedAt: time.Now()}
}

// Found reports whether this entry represents a resolved artifact rather
// than a cached not-found marker.
func (e ArtifactEntry) Found() bool {
	return e.StoredPath != "" || e.SourceURL != ""
}
