package art

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// TokenSource supplies a current bearer token, shared with
// internal/lyrics.TokenSource's shape so the same OAuth client can back
// both.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

func newStreamingClient(baseURL string) *resty.Client {
	if baseURL == "" {
		baseURL = "https://api.spotify.com/v1"
	}
	return resty.New().SetTimeout(15 * time.Second).SetBaseURL(baseURL)
}

// streamingAlbumArtProvider resolves album art via a track lookup on the
// streaming service's API.
type streamingAlbumArtProvider struct {
	tokens   TokenSource
	client   *resty.Client
	priority int
}

// NewStreamingServiceAlbumArt constructs the album-art half of the
// streaming-service provider.
func NewStreamingServiceAlbumArt(tokens TokenSource, baseURL string, priority int) AlbumArtProvider {
	return &streamingAlbumArtProvider{tokens: tokens, client: newStreamingClient(baseURL), priority: priority}
}

func (p *streamingAlbumArtProvider) ID() trackkey.ProviderID { return "streamingservice" }
func (p *streamingAlbumArtProvider) Priority() int           { return p.priority }

type streamingTrackResponse struct {
	Album struct {
		Images []struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"images"`
	} `json:"album"`
}

func (p *streamingAlbumArtProvider) Search(ctx context.Context, q AlbumArtQuery) ([]Candidate, error) {
	if q.ServiceNativeID == "" {
		return nil, nil
	}
	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.R().SetContext(ctx).SetAuthToken(token).
		Get("/tracks/" + q.ServiceNativeID)
	if err != nil {
		return nil, errs.Transient("streamingservice track lookup failed", err)
	}
	if resp.IsError() {
		return nil, errs.Transient("streamingservice track lookup returned an error status", nil)
	}

	var body streamingTrackResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errs.Transient("failed to parse streamingservice track response", err)
	}

	candidates := make([]Candidate, 0, len(body.Album.Images))
	for _, img := range body.Album.Images {
		res := img.Width
		if img.Height > res {
			res = img.Height
		}
		candidates = append(candidates, Candidate{ImageURL: img.URL, ResolutionPx: res, ProviderID: p.ID()})
	}
	return candidates, nil
}

// streamingArtistImageProvider resolves artist images via an artist search
// on the streaming service's API.
type streamingArtistImageProvider struct {
	tokens   TokenSource
	client   *resty.Client
	priority int
}

// NewStreamingServiceArtistImages constructs the artist-image half.
func NewStreamingServiceArtistImages(tokens TokenSource, baseURL string, priority int) ArtistImageProvider {
	return &streamingArtistImageProvider{tokens: tokens, client: newStreamingClient(baseURL), priority: priority}
}

func (p *streamingArtistImageProvider) ID() trackkey.ProviderID { return "streamingservice" }
func (p *streamingArtistImageProvider) Priority() int           { return p.priority }

type streamingArtistSearchResponse struct {
	Artists struct {
		Items []struct {
			Images []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"images"`
		} `json:"items"`
	} `json:"artists"`
}

func (p *streamingArtistImageProvider) Search(ctx context.Context, q ArtistImageQuery) ([]Candidate, error) {
	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.R().SetContext(ctx).SetAuthToken(token).
		SetQueryParam("q", q.Name).
		SetQueryParam("type", "artist").
		SetQueryParam("limit", "1").
		Get("/search")
	if err != nil {
		return nil, errs.Transient("streamingservice artist search failed", err)
	}
	if resp.IsError() {
		return nil, errs.Transient("streamingservice artist search returned an error status", nil)
	}

	var body streamingArtistSearchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errs.Transient("failed to parse streamingservice artist response", err)
	}
	if len(body.Artists.Items) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(body.Artists.Items[0].Images))
	for _, img := range body.Artists.Items[0].Images {
		res := img.Width
		if img.Height > res {
			res = img.Height
		}
		candidates = append(candidates, Candidate{ImageURL: img.URL, ResolutionPx: res, ProviderID: p.ID()})
	}
	return candidates, nil
}
