package art

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/dhowden/tag"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// embeddedProvider reads ID3/FLAC embedded album art directly from a
// locally-playing file, populated only when q.LocalFilePath is set (the
// osmedia source records the file path it resolved for the current
// track). This mirrors the teacher's own use of dhowden/tag to read
// metadata off local files, generalized from text tags to the embedded
// picture.
type embeddedProvider struct {
	priority int
}

// NewEmbedded constructs the embedded-art provider.
func NewEmbedded(priority int) AlbumArtProvider {
	return &embeddedProvider{priority: priority}
}

func (p *embeddedProvider) ID() trackkey.ProviderID { return "embedded" }
func (p *embeddedProvider) Priority() int           { return p.priority }

func (p *embeddedProvider) Search(ctx context.Context, q AlbumArtQuery) ([]Candidate, error) {
	if q.LocalFilePath == "" {
		return nil, nil
	}

	f, err := os.Open(q.LocalFilePath)
	if err != nil {
		return nil, errs.Transient("failed to open local file for embedded art", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, nil
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, nil
	}

	// The embedded picture has no URL; it is surfaced to the downloader via
	// a data URI so the rest of the pipeline (which downloads by URL) needs
	// no special case for locally-sourced bytes.
	return []Candidate{{
		ImageURL:     "data:" + pic.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(pic.Data),
		ResolutionPx: 0,
		ProviderID:   p.ID(),
	}}, nil
}
