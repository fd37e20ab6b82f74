// Package config loads process configuration from the environment, with an
// optional .env file loaded first via godotenv, matching the teacher's
// env-driven config.Load() pattern.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	ServerHTTPSPort string

	DataDir string

	AdminUsername string
	AdminPassword string
	JWTSecret     string

	RecognitionSocket string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string

	FanartTVAPIKey string
	LastFMAPIKey   string

	MusicAssistantURL       string
	MusicAssistantLatencyMs int64

	LRCLibBaseURL        string
	SyncedLyrics1BaseURL string
	SyncedLyrics2BaseURL string
	SyncedLyrics3BaseURL string

	UpdateIntervalMs int
	BlurStrengthPx   int
	OverlayOpacity   float64

	LogLevel string

	HeartbeatInterval time.Duration
	PausedTimeout     time.Duration
	PollInterval      time.Duration
}

// Load reads an optional .env file (absence is not an error, only a parse
// error on an existing file would be worth logging) and then the process
// environment, applying defaults for anything unset.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "9012"),
		ServerHTTPSPort: getEnv("SERVER_HTTPS_PORT", "9013"),

		DataDir: getEnv("DATA_DIR", defaultDataDir()),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", "change-me-in-production-please"),

		RecognitionSocket: getEnv("RECOGNITION_SOCKET", ""),

		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		SpotifyRedirectURI:  getEnv("SPOTIFY_REDIRECT_URI", ""),

		FanartTVAPIKey: getEnv("FANART_TV_API_KEY", ""),
		LastFMAPIKey:   getEnv("LASTFM_API_KEY", ""),

		MusicAssistantURL:       getEnv("MUSIC_ASSISTANT_URL", ""),
		MusicAssistantLatencyMs: getEnvAsInt64("MUSIC_ASSISTANT_LATENCY_MS", 0),

		LRCLibBaseURL:        getEnv("LRCLIB_BASE_URL", "https://lrclib.net"),
		SyncedLyrics1BaseURL: getEnv("SYNCEDLYRICS1_BASE_URL", ""),
		SyncedLyrics2BaseURL: getEnv("SYNCEDLYRICS2_BASE_URL", ""),
		SyncedLyrics3BaseURL: getEnv("SYNCEDLYRICS3_BASE_URL", ""),

		UpdateIntervalMs: getEnvAsInt("UPDATE_INTERVAL_MS", 200),
		BlurStrengthPx:   getEnvAsInt("BLUR_STRENGTH_PX", 40),
		OverlayOpacity:   getEnvAsFloat("OVERLAY_OPACITY", 0.6),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 20*time.Second),
		// 10s matches defaultPausedTimeout in internal/fuser/select.go — a
		// source's candidate snapshot ages out of consideration once it's
		// this stale (0 would mean sticky forever).
		PausedTimeout: getEnvAsDuration("SOURCE_PAUSED_TIMEOUT", 10*time.Second),
		PollInterval:  getEnvAsDuration("SOURCE_POLL_INTERVAL", time.Second),
	}
}

// defaultDataDir mirrors the spec's "OS user data dir + /syncstage"
// fallback; os.UserConfigDir already branches per-platform the way the
// teacher's WebDir default does for a single OS.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/syncstage"
	}
	return "./data"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsInt64(name string, defaultVal int64) int64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}
