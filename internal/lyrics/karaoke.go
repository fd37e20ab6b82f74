package lyrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// KaraokeConfig parameterizes one karaoke/timing-database provider: base
// URL and response shape vary across the three configured instances
// (syncedlyrics1/2/3), but the request/response contract is identical
// enough to share one client type.
type KaraokeConfig struct {
	ID        trackkey.ProviderID
	BaseURL   string
	APIKey    string
	Priority  int
	ReqPerSec int
}

// karaokeProvider is one instance of the shared HTTP client type pointed at
// a karaoke/timing database.
type karaokeProvider struct {
	cfg     KaraokeConfig
	client  *resty.Client
	limiter *rateLimitedDoer
}

// NewKaraoke constructs a karaoke provider instance from cfg.
func NewKaraoke(cfg KaraokeConfig) Provider {
	client := resty.New().SetTimeout(8 * time.Second).SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &karaokeProvider{cfg: cfg, client: client, limiter: newRateLimitedDoer(cfg.ReqPerSec)}
}

func (p *karaokeProvider) ID() trackkey.ProviderID { return p.cfg.ID }
func (p *karaokeProvider) Priority() int           { return p.cfg.Priority }

type karaokeResponse struct {
	Found  bool `json:"found"`
	Lines  []struct {
		StartMs int64 `json:"start_ms"`
		Text    string `json:"text"`
		Words   []struct {
			StartMs int64  `json:"start_ms"`
			Word    string `json:"word"`
		} `json:"words,omitempty"`
	} `json:"lines"`
}

func (p *karaokeProvider) Fetch(ctx context.Context, q Query) (model.LyricsDoc, error) {
	if err := p.limiter.wait(ctx); err != nil {
		return model.LyricsDoc{}, errs.Transient("rate limiter wait cancelled", err)
	}

	resp, err := p.client.R().SetContext(ctx).
		SetQueryParam("artist", q.Artist).
		SetQueryParam("title", q.Title).
		Get("/lookup")
	if err != nil {
		return model.LyricsDoc{}, errs.Transient(string(p.cfg.ID)+" request failed", err)
	}
	if resp.StatusCode() == 404 {
		return model.NotFoundDoc(p.ID()), nil
	}
	if resp.IsError() {
		return model.LyricsDoc{}, errs.Transient(string(p.cfg.ID)+" returned an error status", nil)
	}

	var body karaokeResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.LyricsDoc{}, errs.Transient("failed to parse "+string(p.cfg.ID)+" response", err)
	}
	if !body.Found || len(body.Lines) == 0 {
		return model.NotFoundDoc(p.ID()), nil
	}

	hasWords := false
	for _, l := range body.Lines {
		if len(l.Words) > 0 {
			hasWords = true
			break
		}
	}

	if hasWords {
		wsLines := make([]model.WordSyncedLine, 0, len(body.Lines))
		for _, l := range body.Lines {
			words := make([]model.WordSyncedWord, 0, len(l.Words))
			for _, w := range l.Words {
				words = append(words, model.WordSyncedWord{TMs: w.StartMs, Word: w.Word})
			}
			wsLines = append(wsLines, model.WordSyncedLine{Words: words})
		}
		return model.LyricsDoc{
			Variant:         model.VariantWordSynced,
			WordSyncedLines: wsLines,
			ProviderID:      p.ID(),
			FetchedAt:       time.Now(),
		}, nil
	}

	synced := make([]model.SyncedLine, 0, len(body.Lines))
	for _, l := range body.Lines {
		synced = append(synced, model.SyncedLine{TMs: l.StartMs, Text: l.Text})
	}
	return model.LyricsDoc{
		Variant:     model.VariantSynced,
		SyncedLines: synced,
		ProviderID:  p.ID(),
		FetchedAt:   time.Now(),
	}, nil
}
