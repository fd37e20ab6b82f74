package art

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// coverArtArchiveProvider resolves album art from the Cover Art Archive via
// a MusicBrainz release lookup, rate-limited the same way the MusicBrainz
// client example limits its own searches (1 req/s, per their API terms).
type coverArtArchiveProvider struct {
	mbClient  *resty.Client
	caaClient *resty.Client
	limiter   *rate.Limiter
	priority  int
}

// NewCoverArtArchive constructs the provider.
func NewCoverArtArchive(priority int) AlbumArtProvider {
	return &coverArtArchiveProvider{
		mbClient:  resty.New().SetTimeout(10 * time.Second).SetBaseURL("https://musicbrainz.org/ws/2"),
		caaClient: resty.New().SetTimeout(15 * time.Second).SetBaseURL("https://coverartarchive.org"),
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		priority:  priority,
	}
}

func (p *coverArtArchiveProvider) ID() trackkey.ProviderID { return "coverartarchive" }
func (p *coverArtArchiveProvider) Priority() int           { return p.priority }

type mbReleaseSearchResponse struct {
	Releases []struct {
		ID string `json:"id"`
	} `json:"releases"`
}

type caaResponse struct {
	Images []struct {
		Image      string `json:"image"`
		Front      bool   `json:"front"`
		Thumbnails struct {
			Large string `json:"large"`
		} `json:"thumbnails"`
	} `json:"images"`
}

func (p *coverArtArchiveProvider) Search(ctx context.Context, q AlbumArtQuery) ([]Candidate, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errs.Transient("rate limiter wait cancelled", err)
	}
	if q.Artist == "" || q.Album == "" {
		return nil, nil
	}

	mbResp, err := p.mbClient.R().SetContext(ctx).
		SetQueryParam("query", "artist:\""+q.Artist+"\" AND release:\""+q.Album+"\"").
		SetQueryParam("fmt", "json").
		SetQueryParam("limit", "1").
		Get("/release")
	if err != nil {
		return nil, errs.Transient("musicbrainz release search failed", err)
	}
	if mbResp.IsError() {
		return nil, errs.Transient("musicbrainz release search returned an error status", nil)
	}

	var mbBody mbReleaseSearchResponse
	if err := json.Unmarshal(mbResp.Body(), &mbBody); err != nil {
		return nil, errs.Transient("failed to parse musicbrainz response", err)
	}
	if len(mbBody.Releases) == 0 {
		return nil, nil
	}
	releaseID := mbBody.Releases[0].ID

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errs.Transient("rate limiter wait cancelled", err)
	}
	caaResp, err := p.caaClient.R().SetContext(ctx).Get("/release/" + releaseID)
	if err != nil {
		return nil, errs.Transient("cover art archive request failed", err)
	}
	if caaResp.StatusCode() == 404 {
		return nil, nil
	}
	if caaResp.IsError() {
		return nil, errs.Transient("cover art archive returned an error status", nil)
	}

	var caaBody caaResponse
	if err := json.Unmarshal(caaResp.Body(), &caaBody); err != nil {
		return nil, errs.Transient("failed to parse cover art archive response", err)
	}

	candidates := make([]Candidate, 0, len(caaBody.Images))
	for _, img := range caaBody.Images {
		if !img.Front {
			continue
		}
		url := img.Image
		if img.Thumbnails.Large != "" {
			url = img.Thumbnails.Large
		}
		candidates = append(candidates, Candidate{ImageURL: url, ResolutionPx: 500, ProviderID: p.ID()})
	}
	return candidates, nil
}
