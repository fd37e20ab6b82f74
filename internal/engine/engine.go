// Package engine wires every component (C1–C13) into one process and owns
// its startup/shutdown sequencing, mirroring the teacher's Server struct in
// internal/radio/server.go: one root type holding every owned subsystem, no
// package-level singletons.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kitsune-lab/syncstage/config"
	"github.com/kitsune-lab/syncstage/internal/art"
	"github.com/kitsune-lab/syncstage/internal/auth"
	"github.com/kitsune-lab/syncstage/internal/bridge"
	"github.com/kitsune-lab/syncstage/internal/fuser"
	"github.com/kitsune-lab/syncstage/internal/gateway"
	"github.com/kitsune-lab/syncstage/internal/lyrics"
	"github.com/kitsune-lab/syncstage/internal/settings"
	"github.com/kitsune-lab/syncstage/internal/source"
	"github.com/kitsune-lab/syncstage/internal/telemetry"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// Engine owns every subsystem and sequences their startup/shutdown.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	lock *instanceLock

	registry    *source.Registry
	broadcaster *fuser.Broadcaster
	fuser       *fuser.Fuser
	bridgeHub   *bridge.Hub
	settings    *settings.Store
	metrics     *telemetry.Metrics
	lyrics      *lyrics.Resolver
	albumArt    *art.AlbumArtResolver
	artistImgs  *art.ArtistImageResolver
	auth        *auth.Auth

	httpServer *http.Server
}

// New constructs every subsystem from cfg but starts nothing yet.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	lock, err := acquireLock(filepath.Join(cfg.DataDir, "syncstage.lock"))
	if err != nil {
		return nil, err
	}

	store, err := settings.Open(filepath.Join(cfg.DataDir, "settings.json"), settingsEnvOverrides(cfg), logger)
	if err != nil {
		lock.release()
		return nil, err
	}

	metrics := telemetry.New()

	registry := source.NewRegistry(64, logger)
	broadcaster := fuser.NewBroadcaster()

	bridgeHub := bridge.NewHub(bridge.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		PausedTimeout:     cfg.PausedTimeout,
		Metrics:           metrics,
	}, logger)

	streamingTokens := registerSources(registry, bridgeHub, cfg, logger)

	lyricsPreferred := func(key trackkey.Key) (trackkey.ProviderID, bool) {
		p := store.TrackPreferences(key)
		if p.PreferredLyricsProvider == nil {
			return "", false
		}
		return *p.PreferredLyricsProvider, true
	}
	lyricsResolver, err := lyrics.NewResolver(instrumentLyricsProviders(lyricsProviders(cfg, streamingTokens), metrics), cfg.DataDir, lyricsPreferred, logger)
	if err != nil {
		lock.release()
		return nil, err
	}

	artPreferred := func(key trackkey.Key) (trackkey.ProviderID, bool) {
		p := store.TrackPreferences(key)
		if p.PreferredArtProvider == nil {
			return "", false
		}
		return *p.PreferredArtProvider, true
	}
	albumArtResolver, err := art.NewAlbumArtResolver(instrumentAlbumArtProviders(albumArtProviders(cfg, streamingTokens), metrics), cfg.DataDir, artPreferred, logger)
	if err != nil {
		lock.release()
		return nil, err
	}
	artistImageResolver, err := art.NewArtistImageResolver(instrumentArtistImageProviders(artistImageProviders(cfg, streamingTokens), metrics), cfg.DataDir, logger)
	if err != nil {
		lock.release()
		return nil, err
	}

	var a *auth.Auth
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		a = auth.New(auth.Config{
			Username:           cfg.AdminUsername,
			Password:           cfg.AdminPassword,
			JWTSecret:          cfg.JWTSecret,
			TokenTTL:           24 * time.Hour,
			MaxLoginAttempts:   5,
			LoginWindowSeconds: 900,
		})
	}

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		lock:        lock,
		registry:    registry,
		broadcaster: broadcaster,
		bridgeHub:   bridgeHub,
		settings:    store,
		metrics:     metrics,
		lyrics:      lyricsResolver,
		albumArt:    albumArtResolver,
		artistImgs:  artistImageResolver,
		auth:        a,
	}

	e.fuser = fuser.New(registry, broadcaster, logger, e.onTrackChange)

	router := gateway.NewRouter(gateway.Deps{
		Registry:     registry,
		Fuser:        e.fuser,
		Broadcaster:  broadcaster,
		Lyrics:       lyricsResolver,
		AlbumArt:     albumArtResolver,
		ArtistImages: artistImageResolver,
		Settings:     store,
		Bridge:       bridgeHub,
		Auth:         a,
		Metrics:      metrics,
		DataDir:      cfg.DataDir,
		Logger:       logger,
	})

	e.httpServer = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return e, nil
}

// onTrackChange is the fuser's per-track hook (C2 -> C4/C5): it pre-warms
// the lyrics and art caches for the new key so the first /lyrics or
// /api/album-art/options call after a track change is already served from
// cache rather than blocking on every provider.
func (e *Engine) onTrackChange(ctx context.Context, newKey trackkey.Key) {
	if newKey == "" {
		return
	}
	np := e.fuser.Current()
	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _, _ = e.lyrics.Resolve(warmCtx, newKey, lyrics.Query{Artist: np.Artist, Title: np.Title, DurationMs: np.DurationMs})
		_, _, _ = e.albumArt.Resolve(warmCtx, newKey, art.AlbumArtQuery{TrackKey: newKey, Artist: np.Artist, Title: np.Title, Album: np.Album})
	}()
}

// Start runs every subsystem's background loop and binds the HTTP listener,
// returning once ctx is cancelled and shutdown completes, or an unrecoverable
// error occurs (mirroring the teacher's Start: error channel raced against
// ctx.Done).
func (e *Engine) Start(ctx context.Context) error {
	e.registry.Start(ctx)
	go e.fuser.Run(ctx)
	go e.bridgeHub.Run(ctx)
	go runMaintenance(ctx, e.cfg.DataDir, e.logger)

	errChan := make(chan error, 1)
	go func() {
		e.logger.Info("http server starting", "addr", e.httpServer.Addr)
		if err := e.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		e.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		return e.Shutdown(context.Background())
	}
}

// Shutdown tears down subsystems in dependency order (gateway, then
// sources, then the lock file) within spec §4.9's 3-second budget. The
// bridge hub's heartbeat loop ends with the context passed to Start.
func (e *Engine) Shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, 3*time.Second)
	defer cancel()

	err := e.httpServer.Shutdown(ctx)
	e.registry.Stop()
	e.lock.release()
	return err
}

func settingsEnvOverrides(cfg *config.Config) settings.EnvOverrides {
	var overrides settings.EnvOverrides
	if v, ok := os.LookupEnv("UPDATE_INTERVAL_MS"); ok {
		overrides.UpdateIntervalMs = parseIntPtr(v)
	}
	if v, ok := os.LookupEnv("BLUR_STRENGTH_PX"); ok {
		overrides.BlurStrength = parseIntPtr(v)
	}
	return overrides
}

func parseIntPtr(v string) *int {
	n := 0
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return nil
	}
	return &n
}
