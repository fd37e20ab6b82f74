package engine

import (
	"context"
	"time"

	"github.com/kitsune-lab/syncstage/internal/art"
	"github.com/kitsune-lab/syncstage/internal/lyrics"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/telemetry"
)

// timedLyricsProvider wraps a lyrics.Provider to record its fetch latency
// on the shared provider_fetch_seconds histogram, without internal/lyrics
// needing to know telemetry exists.
type timedLyricsProvider struct {
	lyrics.Provider
	metrics *telemetry.Metrics
}

func (p timedLyricsProvider) Fetch(ctx context.Context, q lyrics.Query) (model.LyricsDoc, error) {
	start := time.Now()
	doc, err := p.Provider.Fetch(ctx, q)
	p.metrics.ProviderFetchSecs.WithLabelValues("lyrics", string(p.Provider.ID())).Observe(time.Since(start).Seconds())
	return doc, err
}

func instrumentLyricsProviders(providers []lyrics.Provider, metrics *telemetry.Metrics) []lyrics.Provider {
	out := make([]lyrics.Provider, len(providers))
	for i, p := range providers {
		out[i] = timedLyricsProvider{Provider: p, metrics: metrics}
	}
	return out
}

type timedAlbumArtProvider struct {
	art.AlbumArtProvider
	metrics *telemetry.Metrics
}

func (p timedAlbumArtProvider) Search(ctx context.Context, q art.AlbumArtQuery) ([]art.Candidate, error) {
	start := time.Now()
	candidates, err := p.AlbumArtProvider.Search(ctx, q)
	p.metrics.ProviderFetchSecs.WithLabelValues("album_art", string(p.AlbumArtProvider.ID())).Observe(time.Since(start).Seconds())
	return candidates, err
}

func instrumentAlbumArtProviders(providers []art.AlbumArtProvider, metrics *telemetry.Metrics) []art.AlbumArtProvider {
	out := make([]art.AlbumArtProvider, len(providers))
	for i, p := range providers {
		out[i] = timedAlbumArtProvider{AlbumArtProvider: p, metrics: metrics}
	}
	return out
}

type timedArtistImageProvider struct {
	art.ArtistImageProvider
	metrics *telemetry.Metrics
}

func (p timedArtistImageProvider) Search(ctx context.Context, q art.ArtistImageQuery) ([]art.Candidate, error) {
	start := time.Now()
	candidates, err := p.ArtistImageProvider.Search(ctx, q)
	p.metrics.ProviderFetchSecs.WithLabelValues("artist_image", string(p.ArtistImageProvider.ID())).Observe(time.Since(start).Seconds())
	return candidates, err
}

func instrumentArtistImageProviders(providers []art.ArtistImageProvider, metrics *telemetry.Metrics) []art.ArtistImageProvider {
	out := make([]art.ArtistImageProvider, len(providers))
	for i, p := range providers {
		out[i] = timedArtistImageProvider{ArtistImageProvider: p, metrics: metrics}
	}
	return out
}
