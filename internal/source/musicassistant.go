package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// MusicAssistantConfig configures the polling client for a Music Assistant
// server's currently-playing endpoint.
type MusicAssistantConfig struct {
	BaseURL   string // e.g. http://homeassistant.local:8095
	PlayerID  string
	LatencyMs int64 // assumed reporting lag, added to the reported position
}

type musicAssistantSource struct {
	cfg    MusicAssistantConfig
	client *resty.Client
}

// NewMusicAssistant constructs the Music Assistant source.
func NewMusicAssistant(cfg MusicAssistantConfig) Source {
	return &musicAssistantSource{cfg: cfg, client: resty.New().SetTimeout(5 * time.Second)}
}

func (s *musicAssistantSource) Name() trackkey.SourceID { return "musicassistant" }

func (s *musicAssistantSource) Start(ctx context.Context) error { return nil }
func (s *musicAssistantSource) Stop()                           {}

func (s *musicAssistantSource) Capabilities() []Capability {
	return []Capability{CapPlayPause, CapNext, CapPrevious, CapVolume}
}

type maPlayerState struct {
	State         string `json:"state"`
	ElapsedTimeMs int64  `json:"elapsed_time_ms"`
	CurrentMedia  struct {
		Title      string   `json:"title"`
		Artist     string   `json:"artist"`
		Artists    []string `json:"artists"`
		Album      string   `json:"album"`
		ImageURL   string   `json:"image_url"`
		DurationMs int64    `json:"duration_ms"`
		URI        string   `json:"uri"`
	} `json:"current_media"`
}

func (s *musicAssistantSource) Snapshot(ctx context.Context) (*model.PlaybackSnapshot, error) {
	if s.cfg.BaseURL == "" || s.cfg.PlayerID == "" {
		return nil, errs.Misconfigured("musicassistant base url or player id not configured", nil)
	}

	resp, err := s.client.R().SetContext(ctx).
		Get(fmt.Sprintf("%s/api/players/%s", s.cfg.BaseURL, s.cfg.PlayerID))
	if err != nil {
		return nil, errs.Transient("musicassistant request failed", err)
	}
	if resp.IsError() {
		return nil, errs.Transient(fmt.Sprintf("musicassistant returned %d", resp.StatusCode()), nil)
	}

	var state maPlayerState
	if err := json.Unmarshal(resp.Body(), &state); err != nil {
		return nil, errs.Transient("failed to parse musicassistant response", err)
	}
	if state.CurrentMedia.Title == "" {
		return nil, nil
	}

	duration := state.CurrentMedia.DurationMs
	position := state.ElapsedTimeMs + s.cfg.LatencyMs

	artist := state.CurrentMedia.Artist
	if artist == "" && len(state.CurrentMedia.Artists) > 0 {
		artist = state.CurrentMedia.Artists[0]
	}

	return &model.PlaybackSnapshot{
		SampledAt:   time.Now(),
		TrackKey:    trackkey.FromTitleArtist(artist, state.CurrentMedia.Title),
		Title:       state.CurrentMedia.Title,
		Artist:      artist,
		Artists:     state.CurrentMedia.Artists,
		Album:       state.CurrentMedia.Album,
		AlbumArtURI: state.CurrentMedia.ImageURL,
		DurationMs:  &duration,
		PositionMs:  &position,
		IsPlaying:   state.State == "playing",
		Provenance:  map[string]string{"uri": state.CurrentMedia.URI},
	}, nil
}

func (s *musicAssistantSource) Control(ctx context.Context, cmd Command) error {
	if s.cfg.BaseURL == "" || s.cfg.PlayerID == "" {
		return errs.Misconfigured("musicassistant base url or player id not configured", nil)
	}

	var path string
	req := s.client.R().SetContext(ctx)
	switch cmd.Action {
	case CapPlayPause:
		path = "play_pause"
	case CapNext:
		path = "next"
	case CapPrevious:
		path = "previous"
	case CapVolume:
		path = "volume_set"
		if v, ok := cmd.Args["volume_percent"]; ok {
			req.SetQueryParam("volume_level", fmt.Sprintf("%v", v))
		}
	default:
		return errs.Misconfigured(fmt.Sprintf("musicassistant does not support %q", cmd.Action), nil)
	}

	resp, err := req.Post(fmt.Sprintf("%s/api/players/%s/cmd/%s", s.cfg.BaseURL, s.cfg.PlayerID, path))
	if err != nil {
		return errs.Transient("musicassistant control request failed", err)
	}
	if resp.IsError() {
		return errs.Transient(fmt.Sprintf("musicassistant control returned %d", resp.StatusCode()), nil)
	}
	return nil
}
