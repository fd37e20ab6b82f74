// Package lyrics implements the Lyrics Resolver (C4): a fixed, ordered set
// of rate-limited providers raced in parallel for a TrackKey, with a
// single-flight cache (C3) in front and a tiered preference among variants.
package lyrics

import (
	"context"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// Query carries everything a provider may use to look up lyrics for a
// track; not every field is populated for every source.
type Query struct {
	Artist          string
	Title           string
	DurationMs      *int64
	ServiceNativeID string
}

// Provider is one lyrics source. Fetch must be side-effect-free: a "no
// lyrics found" result is returned as model.NotFoundDoc(id), nil — not an
// error — so the resolver can distinguish an authoritative miss from a
// transient provider failure.
type Provider interface {
	ID() trackkey.ProviderID
	Priority() int
	Fetch(ctx context.Context, q Query) (model.LyricsDoc, error)
}
