// Package art implements the Art & Image Resolver (C5): parallel album-art
// and artist-image pipelines, each querying several providers, downloading
// candidates once via content-addressed storage, and serving a selection
// governed by user preference or largest-resolution-wins.
package art

import (
	"context"

	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// AlbumArtQuery carries the lookup hints for an album-art search.
type AlbumArtQuery struct {
	TrackKey        trackkey.Key
	Artist          string
	Title           string
	Album           string
	ServiceNativeID string
	LocalFilePath   string // copied from a snapshot's extra["file_path"] when present, for the embedded provider; no built-in source sets it
}

// Candidate is one image reference returned by a provider, not yet
// downloaded.
type Candidate struct {
	ImageURL     string
	ResolutionPx int
	ProviderID   trackkey.ProviderID
}

// AlbumArtProvider searches for album art candidates; zero candidates is
// not an error.
type AlbumArtProvider interface {
	ID() trackkey.ProviderID
	Priority() int
	Search(ctx context.Context, q AlbumArtQuery) ([]Candidate, error)
}

// ArtistImageQuery carries the lookup hints for an artist-image search.
type ArtistImageQuery struct {
	ArtistKey trackkey.ArtistKey
	Name      string
}

// ArtistImageProvider searches for artist image candidates.
type ArtistImageProvider interface {
	ID() trackkey.ProviderID
	Priority() int
	Search(ctx context.Context, q ArtistImageQuery) ([]Candidate, error)
}
