package engine

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/kitsune-lab/syncstage/config"
	"github.com/kitsune-lab/syncstage/internal/art"
	"github.com/kitsune-lab/syncstage/internal/bridge"
	"github.com/kitsune-lab/syncstage/internal/lyrics"
	"github.com/kitsune-lab/syncstage/internal/source"
)

// tokenProvider is the shared shape of internal/lyrics.TokenSource and
// internal/art.TokenSource — the streaming-service source's concrete type
// satisfies it without either package importing internal/source.
type tokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// registerSources registers every C1 source SPEC_FULL.md names, enabling
// each only when its required configuration is present — an unconfigured
// source is simply never registered rather than registered-and-disabled,
// since none of them need to appear in /config diagnostics as "present but
// off".
func registerSources(registry *source.Registry, hub *bridge.Hub, cfg *config.Config, logger *slog.Logger) tokenProvider {
	registry.Register(source.NewOSMedia(), source.Config{
		ID: "osmedia", Enabled: true, PollInterval: cfg.PollInterval, Priority: 10, PausedTimeout: cfg.PausedTimeout,
	})

	spicetify := source.NewSpicetify(hub)
	registry.Register(spicetify, source.Config{
		ID: "spicetify", Enabled: true, PollInterval: cfg.PollInterval, Priority: 50, PausedTimeout: cfg.PausedTimeout,
	})

	if cfg.RecognitionSocket != "" {
		registry.Register(source.NewRecognition(cfg.RecognitionSocket), source.Config{
			ID: "recognition", Enabled: true, PollInterval: cfg.PollInterval, Priority: 5, PausedTimeout: cfg.PausedTimeout,
		})
		logger.Info("recognition source enabled", "socket", cfg.RecognitionSocket)
	}

	if cfg.MusicAssistantURL != "" {
		registry.Register(source.NewMusicAssistant(source.MusicAssistantConfig{
			BaseURL:   cfg.MusicAssistantURL,
			LatencyMs: cfg.MusicAssistantLatencyMs,
		}), source.Config{
			ID: "musicassistant", Enabled: true, PollInterval: cfg.PollInterval, Priority: 30, PausedTimeout: cfg.PausedTimeout,
		})
		logger.Info("music assistant source enabled", "base_url", cfg.MusicAssistantURL)
	}

	var streamingSource source.Source
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		streamingSource = source.NewStreamingService(source.StreamingServiceConfig{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			TokenPath:    filepath.Join(cfg.DataDir, "token.json"),
		})
		registry.Register(streamingSource, source.Config{
			ID: "streamingservice", Enabled: true, PollInterval: cfg.PollInterval, Priority: 40, PausedTimeout: cfg.PausedTimeout,
		})
		logger.Info("streaming service source enabled")
	}

	if streamingSource == nil {
		return nil
	}
	ts, _ := streamingSource.(tokenProvider)
	return ts
}

// lyricsProviders builds the C4 provider set from whichever config is
// present: LRCLib is always available (no credentials required), the
// karaoke/timing-database instances and the streaming-service provider are
// added only when their endpoint/token is configured.
func lyricsProviders(cfg *config.Config, tokens tokenProvider) []lyrics.Provider {
	providers := []lyrics.Provider{
		lyrics.NewLRCLib(1, 5),
	}
	if tokens != nil {
		providers = append(providers, lyrics.NewStreamingService(tokens, "", 5, 5))
	}
	if cfg.SyncedLyrics1BaseURL != "" {
		providers = append(providers, lyrics.NewKaraoke(lyrics.KaraokeConfig{
			ID: "syncedlyrics1", BaseURL: cfg.SyncedLyrics1BaseURL, Priority: 2, ReqPerSec: 5,
		}))
	}
	if cfg.SyncedLyrics2BaseURL != "" {
		providers = append(providers, lyrics.NewKaraoke(lyrics.KaraokeConfig{
			ID: "syncedlyrics2", BaseURL: cfg.SyncedLyrics2BaseURL, Priority: 3, ReqPerSec: 5,
		}))
	}
	if cfg.SyncedLyrics3BaseURL != "" {
		providers = append(providers, lyrics.NewKaraoke(lyrics.KaraokeConfig{
			ID: "syncedlyrics3", BaseURL: cfg.SyncedLyrics3BaseURL, Priority: 4, ReqPerSec: 5,
		}))
	}
	return providers
}

// albumArtProviders builds the C5 album-art provider set: embedded tags and
// iTunes/MusicBrainz cover art archive need no credentials; the
// streaming-service provider needs a shared OAuth token, supplied only when
// that source is actually registered.
func albumArtProviders(cfg *config.Config, tokens tokenProvider) []art.AlbumArtProvider {
	providers := []art.AlbumArtProvider{
		art.NewEmbedded(1),
		art.NewITunes(2),
		art.NewCoverArtArchive(3),
	}
	if tokens != nil {
		providers = append(providers, art.NewStreamingServiceAlbumArt(tokens, "", 4))
	}
	return providers
}

// artistImageProviders builds the C5 artist-image provider set, gated on
// the corresponding API keys per spec §6.
func artistImageProviders(cfg *config.Config, tokens tokenProvider) []art.ArtistImageProvider {
	var providers []art.ArtistImageProvider
	if cfg.FanartTVAPIKey != "" {
		providers = append(providers, art.NewFanartTV(cfg.FanartTVAPIKey, 1))
	}
	if cfg.LastFMAPIKey != "" {
		providers = append(providers, art.NewLastFM(cfg.LastFMAPIKey, 2))
	}
	if tokens != nil {
		providers = append(providers, art.NewStreamingServiceArtistImages(tokens, "", 3))
	}
	return providers
}
