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

// TokenSource supplies a current bearer token for the streaming-service
// lyrics provider, implemented by the same OAuth client the C1
// streamingservice source keeps refreshed — kept as a narrow interface here
// so internal/lyrics never imports internal/source.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StreamingServiceProvider resolves lyrics from a streaming service's
// internal lyrics endpoint, used only when an access token is available.
type StreamingServiceProvider struct {
	tokens   TokenSource
	client   *resty.Client
	priority int
	limiter  *rateLimitedDoer
}

// NewStreamingService constructs the streaming-service lyrics provider.
func NewStreamingService(tokens TokenSource, baseURL string, priority int, reqPerSec int) *StreamingServiceProvider {
	if baseURL == "" {
		baseURL = "https://api.spotify.com/v1"
	}
	return &StreamingServiceProvider{
		tokens:   tokens,
		client:   resty.New().SetTimeout(8 * time.Second).SetBaseURL(baseURL),
		priority: priority,
		limiter:  newRateLimitedDoer(reqPerSec),
	}
}

func (p *StreamingServiceProvider) ID() trackkey.ProviderID { return "streamingservice" }
func (p *StreamingServiceProvider) Priority() int           { return p.priority }

type streamingLyricsResponse struct {
	Lyrics struct {
		SyncType string `json:"syncType"`
		Lines    []struct {
			StartTimeMs string `json:"startTimeMs"`
			Words       string `json:"words"`
		} `json:"lines"`
	} `json:"lyrics"`
}

func (p *StreamingServiceProvider) Fetch(ctx context.Context, q Query) (model.LyricsDoc, error) {
	if q.ServiceNativeID == "" {
		return model.NotFoundDoc(p.ID()), nil
	}
	if err := p.limiter.wait(ctx); err != nil {
		return model.LyricsDoc{}, errs.Transient("rate limiter wait cancelled", err)
	}

	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return model.LyricsDoc{}, err
	}

	resp, err := p.client.R().SetContext(ctx).SetAuthToken(token).
		Get("/tracks/" + q.ServiceNativeID + "/lyrics")
	if err != nil {
		return model.LyricsDoc{}, errs.Transient("streamingservice lyrics request failed", err)
	}
	if resp.StatusCode() == 404 {
		return model.NotFoundDoc(p.ID()), nil
	}
	if resp.IsError() {
		return model.LyricsDoc{}, errs.Transient("streamingservice lyrics returned an error status", nil)
	}

	var body streamingLyricsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.LyricsDoc{}, errs.Transient("failed to parse streamingservice lyrics response", err)
	}
	if len(body.Lyrics.Lines) == 0 {
		return model.NotFoundDoc(p.ID()), nil
	}

	lines := make([]model.SyncedLine, 0, len(body.Lyrics.Lines))
	for _, l := range body.Lyrics.Lines {
		var ms int64
		for _, c := range l.StartTimeMs {
			if c < '0' || c > '9' {
				break
			}
			ms = ms*10 + int64(c-'0')
		}
		lines = append(lines, model.SyncedLine{TMs: ms, Text: l.Words})
	}

	variant := model.VariantSynced
	if body.Lyrics.SyncType == "UNSYNCED" {
		unsynced := make([]string, len(lines))
		for i, l := range lines {
			unsynced[i] = l.Text
		}
		return model.LyricsDoc{
			Variant:       model.VariantUnsynced,
			UnsyncedLines: unsynced,
			ProviderID:    p.ID(),
			FetchedAt:     time.Now(),
		}, nil
	}

	return model.LyricsDoc{
		Variant:     variant,
		SyncedLines: lines,
		ProviderID:  p.ID(),
		FetchedAt:   time.Now(),
	}, nil
}
