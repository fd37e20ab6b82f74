package lyrics

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"context"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// lrcLineRe matches one standard LRC timestamp tag: "[mm:ss.xx]".
var lrcLineRe = regexp.MustCompile(`^\[(\d{2}):(\d{2})(?:\.(\d{1,3}))?\](.*)$`)

// LRCLibProvider queries the open LRC database lrclib.net; no API key is
// required.
type LRCLibProvider struct {
	client   *resty.Client
	priority int
	limiter  *rateLimitedDoer
}

// NewLRCLib constructs the lrclib provider.
func NewLRCLib(priority int, reqPerSec int) *LRCLibProvider {
	return &LRCLibProvider{
		client:   resty.New().SetTimeout(8 * time.Second).SetBaseURL("https://lrclib.net/api"),
		priority: priority,
		limiter:  newRateLimitedDoer(reqPerSec),
	}
}

func (p *LRCLibProvider) ID() trackkey.ProviderID { return "lrclib" }
func (p *LRCLibProvider) Priority() int           { return p.priority }

type lrclibResponse struct {
	ID           int    `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	Duration     float64 `json:"duration"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

func (p *LRCLibProvider) Fetch(ctx context.Context, q Query) (model.LyricsDoc, error) {
	if err := p.limiter.wait(ctx); err != nil {
		return model.LyricsDoc{}, errs.Transient("rate limiter wait cancelled", err)
	}

	req := p.client.R().SetContext(ctx).
		SetQueryParam("track_name", q.Title).
		SetQueryParam("artist_name", q.Artist)
	if q.DurationMs != nil {
		req.SetQueryParam("duration", strconv.FormatFloat(float64(*q.DurationMs)/1000, 'f', 0, 64))
	}

	resp, err := req.Get("/get")
	if err != nil {
		return model.LyricsDoc{}, errs.Transient("lrclib request failed", err)
	}
	if resp.StatusCode() == 404 {
		return model.NotFoundDoc(p.ID()), nil
	}
	if resp.IsError() {
		return model.LyricsDoc{}, errs.Transient("lrclib returned an error status", nil)
	}

	var body lrclibResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.LyricsDoc{}, errs.Transient("failed to parse lrclib response", err)
	}

	if body.Instrumental {
		return model.InstrumentalDoc(p.ID()), nil
	}

	if body.SyncedLyrics != "" {
		lines := parseLRC(body.SyncedLyrics)
		if len(lines) > 0 {
			return model.LyricsDoc{
				Variant:     model.VariantSynced,
				SyncedLines: lines,
				ProviderID:  p.ID(),
				FetchedAt:   time.Now(),
			}, nil
		}
	}

	if body.PlainLyrics != "" {
		return model.LyricsDoc{
			Variant:       model.VariantUnsynced,
			UnsyncedLines: splitLines(body.PlainLyrics),
			ProviderID:    p.ID(),
			FetchedAt:     time.Now(),
		}, nil
	}

	return model.NotFoundDoc(p.ID()), nil
}

// parseLRC parses standard "[mm:ss.xx]text" LRC-format lyrics into ordered
// SyncedLines.
func parseLRC(raw string) []model.SyncedLine {
	var lines []model.SyncedLine
	for _, l := range splitLines(raw) {
		m := lrcLineRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		min, _ := strconv.Atoi(m[1])
		sec, _ := strconv.Atoi(m[2])
		centi := 0
		if m[3] != "" {
			centi, _ = strconv.Atoi(m[3])
			for len(m[3]) < 3 {
				m[3] += "0"
				centi, _ = strconv.Atoi(m[3])
			}
		}
		tMs := int64(min)*60000 + int64(sec)*1000 + int64(centi)
		lines = append(lines, model.SyncedLine{TMs: tMs, Text: m[4]})
	}
	return lines
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
