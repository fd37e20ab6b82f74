package lyrics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

type fakeProvider struct {
	id       trackkey.ProviderID
	priority int
	delay    time.Duration
	doc      model.LyricsDoc
	err      error
	calls    int
}

func (f *fakeProvider) ID() trackkey.ProviderID { return f.id }
func (f *fakeProvider) Priority() int           { return f.priority }

func (f *fakeProvider) Fetch(ctx context.Context, q Query) (model.LyricsDoc, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.LyricsDoc{}, ctx.Err()
		}
	}
	return f.doc, f.err
}

func TestResolveRacesProvidersAndPrefersHigherTier(t *testing.T) {
	unsynced := &fakeProvider{id: "fast-unsynced", priority: 1,
		doc: model.LyricsDoc{Variant: model.VariantUnsynced, UnsyncedLines: []string{"a"}}}
	synced := &fakeProvider{id: "slow-synced", priority: 1, delay: 5 * time.Millisecond,
		doc: model.LyricsDoc{Variant: model.VariantSynced, SyncedLines: []model.SyncedLine{{TMs: 0, Text: "a"}}}}

	r, err := NewResolver([]Provider{unsynced, synced}, "", nil, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	doc, provider, err := r.Resolve(context.Background(), "key", Query{Artist: "A", Title: "T"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if doc.Variant != model.VariantSynced || provider != "slow-synced" {
		t.Fatalf("expected the Synced reply to win over Unsynced regardless of arrival order, got variant=%v provider=%v", doc.Variant, provider)
	}
}

func TestResolveCachesNotFoundWhenAllProvidersMiss(t *testing.T) {
	p1 := &fakeProvider{id: "p1", doc: model.NotFoundDoc("p1")}
	p2 := &fakeProvider{id: "p2", doc: model.NotFoundDoc("p2")}

	r, err := NewResolver([]Provider{p1, p2}, "", nil, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	doc, _, err := r.Resolve(context.Background(), "key", Query{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if doc.Variant != model.VariantNotFound {
		t.Fatalf("expected NotFound when every provider misses, got %v", doc.Variant)
	}

	doc2, _, err := r.Resolve(context.Background(), "key", Query{})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if doc2.Variant != model.VariantNotFound {
		t.Fatalf("expected cached NotFound on second resolve, got %v", doc2.Variant)
	}
	if p1.calls != 1 || p2.calls != 1 {
		t.Fatalf("expected providers not to be re-queried once NotFound is cached, calls p1=%d p2=%d", p1.calls, p2.calls)
	}
}

func TestResolveHonorsUserOverrideWhenCached(t *testing.T) {
	preferred := &fakeProvider{id: "preferred", priority: 0,
		doc: model.LyricsDoc{Variant: model.VariantUnsynced, UnsyncedLines: []string{"preferred line"}}}
	higherTier := &fakeProvider{id: "higher-tier", priority: 5,
		doc: model.LyricsDoc{Variant: model.VariantWordSynced, WordSyncedLines: []model.WordSyncedLine{{}}}}

	lookup := func(key trackkey.Key) (trackkey.ProviderID, bool) {
		return "preferred", true
	}
	r, err := NewResolver([]Provider{preferred, higherTier}, "", lookup, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	// Prime the alternate cache by resolving once without a preference lookup.
	r.preferred = nil
	if _, _, err := r.Resolve(context.Background(), "key", Query{}); err != nil {
		t.Fatalf("priming Resolve: %v", err)
	}
	r.preferred = lookup

	doc, provider, err := r.Resolve(context.Background(), "key", Query{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if provider != "preferred" || doc.Variant != model.VariantUnsynced {
		t.Fatalf("expected the user override to win over a higher-tier reply, got provider=%v variant=%v", provider, doc.Variant)
	}
}

func TestLyricsDocRoundTripsThroughJSON(t *testing.T) {
	docs := []model.LyricsDoc{
		{Variant: model.VariantSynced, SyncedLines: []model.SyncedLine{{TMs: 100, Text: "line"}}},
		{Variant: model.VariantWordSynced, WordSyncedLines: []model.WordSyncedLine{{Words: nil}}},
		{Variant: model.VariantUnsynced, UnsyncedLines: []string{"a", "b"}},
		{Variant: model.VariantInstrumental},
		{Variant: model.VariantNotFound},
	}
	for _, d := range docs {
		raw, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("marshal %v: %v", d.Variant, err)
		}
		var back model.LyricsDoc
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %v: %v", d.Variant, err)
		}
		if back.Variant != d.Variant {
			t.Fatalf("round-trip changed variant: %v -> %v", d.Variant, back.Variant)
		}
	}
}
