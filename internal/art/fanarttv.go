package art

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// fanartTVProvider resolves artist images from fanart.tv, keyed on the
// MusicBrainz artist mbid. Without a resolved mbid it returns no
// candidates rather than guessing by name.
type fanartTVProvider struct {
	client   *resty.Client
	mbClient *resty.Client
	apiKey   string
	priority int
}

// NewFanartTV constructs the fanart.tv artist-image provider.
func NewFanartTV(apiKey string, priority int) ArtistImageProvider {
	return &fanartTVProvider{
		client:   resty.New().SetTimeout(15 * time.Second).SetBaseURL("https://webservice.fanart.tv/v3/music"),
		mbClient: resty.New().SetTimeout(10 * time.Second).SetBaseURL("https://musicbrainz.org/ws/2"),
		apiKey:   apiKey,
		priority: priority,
	}
}

func (p *fanartTVProvider) ID() trackkey.ProviderID { return "fanarttv" }
func (p *fanartTVProvider) Priority() int           { return p.priority }

type mbArtistSearchResponse struct {
	Artists []struct {
		ID string `json:"id"`
	} `json:"artists"`
}

type fanartResponse struct {
	ArtistBackground []struct {
		URL string `json:"url"`
	} `json:"artistbackground"`
	ArtistThumb []struct {
		URL string `json:"url"`
	} `json:"artistthumb"`
}

func (p *fanartTVProvider) Search(ctx context.Context, q ArtistImageQuery) ([]Candidate, error) {
	if p.apiKey == "" {
		return nil, errs.Misconfigured("fanarttv api key not configured", nil)
	}

	mbResp, err := p.mbClient.R().SetContext(ctx).
		SetQueryParam("query", "artist:\""+q.Name+"\"").
		SetQueryParam("fmt", "json").
		SetQueryParam("limit", "1").
		Get("/artist")
	if err != nil {
		return nil, errs.Transient("musicbrainz artist search failed", err)
	}
	if mbResp.IsError() {
		return nil, errs.Transient("musicbrainz artist search returned an error status", nil)
	}
	var mbBody mbArtistSearchResponse
	if err := json.Unmarshal(mbResp.Body(), &mbBody); err != nil {
		return nil, errs.Transient("failed to parse musicbrainz artist response", err)
	}
	if len(mbBody.Artists) == 0 {
		return nil, nil
	}
	mbid := mbBody.Artists[0].ID

	resp, err := p.client.R().SetContext(ctx).
		SetQueryParam("api_key", p.apiKey).
		Get("/" + mbid)
	if err != nil {
		return nil, errs.Transient("fanart.tv request failed", err)
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, errs.Transient("fanart.tv returned an error status", nil)
	}

	var body fanartResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errs.Transient("failed to parse fanart.tv response", err)
	}

	candidates := make([]Candidate, 0, len(body.ArtistBackground)+len(body.ArtistThumb))
	for _, img := range body.ArtistBackground {
		candidates = append(candidates, Candidate{ImageURL: img.URL, ResolutionPx: 1920, ProviderID: p.ID()})
	}
	for _, img := range body.ArtistThumb {
		candidates = append(candidates, Candidate{ImageURL: img.URL, ResolutionPx: 500, ProviderID: p.ID()})
	}
	return candidates, nil
}
