package art

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// iTunesProvider searches the iTunes Search API for album art, the same
// endpoint and query shape the Apple Music Discord bridge uses for artwork
// lookups.
type iTunesProvider struct {
	client   *resty.Client
	priority int
}

// NewITunes constructs the iTunes album-art provider.
func NewITunes(priority int) AlbumArtProvider {
	return &iTunesProvider{
		client:   resty.New().SetTimeout(15 * time.Second).SetBaseURL("https://itunes.apple.com"),
		priority: priority,
	}
}

func (p *iTunesProvider) ID() trackkey.ProviderID { return "itunes" }
func (p *iTunesProvider) Priority() int           { return p.priority }

type iTunesSearchResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		ArtworkURL100 string `json:"artworkUrl100"`
	} `json:"results"`
}

func (p *iTunesProvider) Search(ctx context.Context, q AlbumArtQuery) ([]Candidate, error) {
	term := strings.TrimSpace(q.Artist + " " + q.Album)
	if term == "" {
		term = q.Title
	}

	resp, err := p.client.R().SetContext(ctx).
		SetQueryParam("term", term).
		SetQueryParam("media", "music").
		SetQueryParam("entity", "album").
		SetQueryParam("limit", "3").
		Get("/search")
	if err != nil {
		return nil, errs.Transient("itunes search request failed", err)
	}
	if resp.IsError() {
		return nil, errs.Transient("itunes search returned an error status", nil)
	}

	var body iTunesSearchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errs.Transient("failed to parse itunes search response", err)
	}

	candidates := make([]Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		if r.ArtworkURL100 == "" {
			continue
		}
		// iTunes serves any resolution by rewriting the size segment in the
		// URL; 600x600 is the commonly used "high-res" variant.
		url600 := strings.Replace(r.ArtworkURL100, "100x100", "600x600", 1)
		candidates = append(candidates, Candidate{ImageURL: url600, ResolutionPx: 600, ProviderID: p.ID()})
	}
	return candidates, nil
}
