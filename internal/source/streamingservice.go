package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// StreamingServiceConfig configures the OAuth client-credentials/
// refresh-token dance against a Spotify-shaped "currently playing" API.
type StreamingServiceConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenPath    string
	BaseURL      string // defaults to https://api.spotify.com/v1
	AuthURL      string // defaults to https://accounts.spotify.com/api/token
}

// tokenRecord is the on-disk OAuth token cache, refreshed in place.
type tokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (t tokenRecord) valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-30*time.Second))
}

// streamingServiceSource polls a streaming service's "currently playing"
// endpoint, authenticated via OAuth and persisted to TokenPath so a
// restart does not require re-authorizing.
type streamingServiceSource struct {
	cfg    StreamingServiceConfig
	client *resty.Client

	mu    sync.Mutex
	token tokenRecord
}

// NewStreamingService constructs the streaming-service source.
func NewStreamingService(cfg StreamingServiceConfig) Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.spotify.com/v1"
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = "https://accounts.spotify.com/api/token"
	}
	return &streamingServiceSource{
		cfg:    cfg,
		client: resty.New().SetTimeout(5 * time.Second),
	}
}

func (s *streamingServiceSource) Name() trackkey.SourceID { return "streamingservice" }

func (s *streamingServiceSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, err := s.loadToken(); err == nil {
		s.token = rec
	}
	return nil
}

func (s *streamingServiceSource) Stop() {}

func (s *streamingServiceSource) Capabilities() []Capability {
	return []Capability{CapPlayPause, CapNext, CapPrevious, CapSeek, CapVolume, CapShuffle, CapRepeat, CapLike, CapQueue}
}

func (s *streamingServiceSource) loadToken() (tokenRecord, error) {
	if s.cfg.TokenPath == "" {
		return tokenRecord{}, fmt.Errorf("no token path configured")
	}
	raw, err := os.ReadFile(s.cfg.TokenPath)
	if err != nil {
		return tokenRecord{}, err
	}
	var rec tokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return tokenRecord{}, errs.Corrupt("malformed token.json", err)
	}
	return rec, nil
}

func (s *streamingServiceSource) persistToken(rec tokenRecord) {
	if s.cfg.TokenPath == "" {
		return
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	dir := filepath.Dir(s.cfg.TokenPath)
	_ = os.MkdirAll(dir, 0o755)
	tmp, err := os.CreateTemp(dir, "token-*.json.tmp")
	if err != nil {
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, s.cfg.TokenPath); err != nil {
		os.Remove(tmpName)
	}
}

// AccessToken exposes the source's refreshed OAuth token so the C4/C5
// streaming-service providers can authenticate without internal/source
// becoming a dependency of internal/lyrics or internal/art — callers type-
// assert the Source returned by NewStreamingService against an
// AccessToken(ctx) (string, error) interface of their own.
func (s *streamingServiceSource) AccessToken(ctx context.Context) (string, error) {
	return s.ensureToken(ctx)
}

func (s *streamingServiceSource) ensureToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.valid(time.Now()) {
		return s.token.AccessToken, nil
	}
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return "", errs.Misconfigured("streamingservice client id/secret not configured", nil)
	}

	req := s.client.R().SetContext(ctx).SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)
	if s.cfg.RefreshToken != "" {
		req.SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": s.cfg.RefreshToken,
		})
	} else {
		req.SetFormData(map[string]string{"grant_type": "client_credentials"})
	}

	resp, err := req.Post(s.cfg.AuthURL)
	if err != nil {
		return "", errs.Transient("token exchange request failed", err)
	}
	if resp.IsError() {
		return "", errs.Misconfigured(fmt.Sprintf("token exchange returned %d", resp.StatusCode()), nil)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", errs.Transient("failed to parse token response", err)
	}
	if body.AccessToken == "" {
		return "", errs.Misconfigured("token response missing access_token", nil)
	}

	s.token = tokenRecord{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	if s.token.RefreshToken == "" {
		s.token.RefreshToken = s.cfg.RefreshToken
	}
	s.persistToken(s.token)

	return s.token.AccessToken, nil
}

type currentlyPlayingResponse struct {
	IsPlaying  bool `json:"is_playing"`
	ProgressMs int64 `json:"progress_ms"`
	Item       struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		DurationMs int64 `json:"duration_ms"`
		Album    struct {
			Name   string `json:"name"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"item"`
}

func (s *streamingServiceSource) Snapshot(ctx context.Context) (*model.PlaybackSnapshot, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.R().SetContext(ctx).
		SetAuthToken(token).
		Get(s.cfg.BaseURL + "/me/player/currently-playing")
	if err != nil {
		return nil, errs.Transient("currently-playing request failed", err)
	}
	if resp.StatusCode() == 204 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, errs.Transient(fmt.Sprintf("currently-playing returned %d", resp.StatusCode()), nil)
	}

	var body currentlyPlayingResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errs.Transient("failed to parse currently-playing response", err)
	}
	if body.Item.ID == "" {
		return nil, nil
	}

	artists := make([]string, 0, len(body.Item.Artists))
	for _, a := range body.Item.Artists {
		artists = append(artists, a.Name)
	}
	artist := ""
	if len(artists) > 0 {
		artist = artists[0]
	}

	artURI := ""
	if len(body.Item.Album.Images) > 0 {
		artURI = body.Item.Album.Images[0].URL
	}

	duration := body.Item.DurationMs
	position := body.ProgressMs

	return &model.PlaybackSnapshot{
		SampledAt:   time.Now(),
		TrackKey:    trackkey.FromServiceID("streamingservice", body.Item.ID),
		Title:       body.Item.Name,
		Artist:      artist,
		Artists:     artists,
		Album:       body.Item.Album.Name,
		AlbumArtURI: artURI,
		DurationMs:  &duration,
		PositionMs:  &position,
		IsPlaying:   body.IsPlaying,
		Provenance:  map[string]string{"native_id": body.Item.ID},
	}, nil
}

func (s *streamingServiceSource) Control(ctx context.Context, cmd Command) error {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return err
	}
	req := s.client.R().SetContext(ctx).SetAuthToken(token)

	var (
		method string
		path   string
	)
	switch cmd.Action {
	case CapPlayPause:
		method, path = "PUT", "/me/player/play"
	case CapNext:
		method, path = "POST", "/me/player/next"
	case CapPrevious:
		method, path = "POST", "/me/player/previous"
	case CapSeek:
		method, path = "PUT", "/me/player/seek"
		if ms, ok := cmd.Args["position_ms"]; ok {
			req.SetQueryParam("position_ms", fmt.Sprintf("%v", ms))
		}
	case CapVolume:
		method, path = "PUT", "/me/player/volume"
		if v, ok := cmd.Args["volume_percent"]; ok {
			req.SetQueryParam("volume_percent", fmt.Sprintf("%v", v))
		}
	case CapShuffle:
		method, path = "PUT", "/me/player/shuffle"
		if v, ok := cmd.Args["state"]; ok {
			req.SetQueryParam("state", fmt.Sprintf("%v", v))
		}
	case CapRepeat:
		method, path = "PUT", "/me/player/repeat"
		if v, ok := cmd.Args["state"]; ok {
			req.SetQueryParam("state", fmt.Sprintf("%v", v))
		}
	default:
		return errs.Misconfigured(fmt.Sprintf("streamingservice does not support %q", cmd.Action), nil)
	}

	resp, err := req.Execute(method, s.cfg.BaseURL+path)
	if err != nil {
		return errs.Transient("control request failed", err)
	}
	if resp.IsError() {
		return errs.Transient(fmt.Sprintf("control request returned %d", resp.StatusCode()), nil)
	}
	return nil
}
