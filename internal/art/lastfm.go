package art

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// lastFMProvider resolves artist images from Last.fm's artist.getInfo
// endpoint.
type lastFMProvider struct {
	client   *resty.Client
	apiKey   string
	priority int
}

// NewLastFM constructs the Last.fm artist-image provider.
func NewLastFM(apiKey string, priority int) ArtistImageProvider {
	return &lastFMProvider{
		client:   resty.New().SetTimeout(15 * time.Second).SetBaseURL("https://ws.audioscrobbler.com/2.0"),
		apiKey:   apiKey,
		priority: priority,
	}
}

func (p *lastFMProvider) ID() trackkey.ProviderID { return "lastfm" }
func (p *lastFMProvider) Priority() int           { return p.priority }

type lastFMArtistResponse struct {
	Artist struct {
		Image []struct {
			Text string `json:"#text"`
			Size string `json:"size"`
		} `json:"image"`
	} `json:"artist"`
}

var lastFMSizeToPx = map[string]int{
	"small":      34,
	"medium":     64,
	"large":      174,
	"extralarge": 300,
	"mega":       600,
}

func (p *lastFMProvider) Search(ctx context.Context, q ArtistImageQuery) ([]Candidate, error) {
	if p.apiKey == "" {
		return nil, errs.Misconfigured("lastfm api key not configured", nil)
	}

	resp, err := p.client.R().SetContext(ctx).
		SetQueryParam("method", "artist.getinfo").
		SetQueryParam("artist", q.Name).
		SetQueryParam("api_key", p.apiKey).
		SetQueryParam("format", "json").
		Get("/")
	if err != nil {
		return nil, errs.Transient("lastfm request failed", err)
	}
	if resp.IsError() {
		return nil, errs.Transient("lastfm returned an error status", nil)
	}

	var body lastFMArtistResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errs.Transient("failed to parse lastfm response", err)
	}

	candidates := make([]Candidate, 0, len(body.Artist.Image))
	for _, img := range body.Artist.Image {
		if img.Text == "" {
			continue
		}
		res, ok := lastFMSizeToPx[img.Size]
		if !ok {
			res = 300
		}
		candidates = append(candidates, Candidate{ImageURL: img.Text, ResolutionPx: res, ProviderID: p.ID()})
	}
	return candidates, nil
}
