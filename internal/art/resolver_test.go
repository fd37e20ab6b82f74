package art

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

type fakeAlbumArtProvider struct {
	id         trackkey.ProviderID
	priority   int
	candidates []Candidate
	calls      int
}

func (f *fakeAlbumArtProvider) ID() trackkey.ProviderID { return f.id }
func (f *fakeAlbumArtProvider) Priority() int           { return f.priority }
func (f *fakeAlbumArtProvider) Search(ctx context.Context, q AlbumArtQuery) ([]Candidate, error) {
	f.calls++
	return f.candidates, nil
}

func TestResolveAlbumArtPicksLargestResolutionByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes-" + r.URL.Path))
	}))
	defer srv.Close()

	small := &fakeAlbumArtProvider{id: "small", priority: 0, candidates: []Candidate{
		{ImageURL: srv.URL + "/small.jpg", ResolutionPx: 100, ProviderID: "small"},
	}}
	large := &fakeAlbumArtProvider{id: "large", priority: 0, candidates: []Candidate{
		{ImageURL: srv.URL + "/large.jpg", ResolutionPx: 600, ProviderID: "large"},
	}}

	r, err := NewAlbumArtResolver([]AlbumArtProvider{small, large}, t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("NewAlbumArtResolver: %v", err)
	}

	served, all, err := r.Resolve(context.Background(), "key", AlbumArtQuery{TrackKey: "key"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if served.ProviderID != "large" {
		t.Fatalf("expected the higher-resolution entry to be served, got %v", served.ProviderID)
	}
	if len(all) != 2 {
		t.Fatalf("expected both candidates downloaded, got %d", len(all))
	}
}

func TestResolveAlbumArtHonorsUserPreferenceOverResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes-" + r.URL.Path))
	}))
	defer srv.Close()

	small := &fakeAlbumArtProvider{id: "small", priority: 0, candidates: []Candidate{
		{ImageURL: srv.URL + "/small.jpg", ResolutionPx: 100, ProviderID: "small"},
	}}
	large := &fakeAlbumArtProvider{id: "large", priority: 0, candidates: []Candidate{
		{ImageURL: srv.URL + "/large.jpg", ResolutionPx: 600, ProviderID: "large"},
	}}

	lookup := func(key trackkey.Key) (trackkey.ProviderID, bool) { return "small", true }
	r, err := NewAlbumArtResolver([]AlbumArtProvider{small, large}, t.TempDir(), lookup, nil)
	if err != nil {
		t.Fatalf("NewAlbumArtResolver: %v", err)
	}

	served, _, err := r.Resolve(context.Background(), "key", AlbumArtQuery{TrackKey: "key"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if served.ProviderID != "small" {
		t.Fatalf("expected the preferred provider to be served despite lower resolution, got %v", served.ProviderID)
	}
}

func TestResolveAlbumArtDoesNotReDownloadSameURL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("same-bytes"))
	}))
	defer srv.Close()

	sameURL := srv.URL + "/cover.jpg"
	p1 := &fakeAlbumArtProvider{id: "p1", candidates: []Candidate{{ImageURL: sameURL, ResolutionPx: 300, ProviderID: "p1"}}}
	p2 := &fakeAlbumArtProvider{id: "p2", candidates: []Candidate{{ImageURL: sameURL, ResolutionPx: 300, ProviderID: "p2"}}}

	dataDir := t.TempDir()
	r, err := NewAlbumArtResolver([]AlbumArtProvider{p1, p2}, dataDir, nil, nil)
	if err != nil {
		t.Fatalf("NewAlbumArtResolver: %v", err)
	}

	_, all, err := r.Resolve(context.Background(), "key", AlbumArtQuery{TrackKey: "key"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected the shared URL to be fetched exactly once, got %d hits", hits)
	}
	if len(all) != 2 {
		t.Fatalf("expected one entry per provider even though bytes were shared, got %d", len(all))
	}
	if all[0].ContentHash != all[1].ContentHash {
		t.Fatalf("expected identical bytes to produce identical content hashes")
	}
}

func TestResolveAlbumArtReturnsNotFoundWhenNoCandidates(t *testing.T) {
	empty := &fakeAlbumArtProvider{id: "empty"}
	r, err := NewAlbumArtResolver([]AlbumArtProvider{empty}, t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("NewAlbumArtResolver: %v", err)
	}

	served, all, err := r.Resolve(context.Background(), "key", AlbumArtQuery{TrackKey: "key"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if served.Found() {
		t.Fatalf("expected a not-found artifact when no provider has a candidate")
	}
	if all != nil {
		t.Fatalf("expected no candidate list on a not-found result")
	}
}

type fakeArtistImageProvider struct {
	id         trackkey.ProviderID
	candidates []Candidate
}

func (f *fakeArtistImageProvider) ID() trackkey.ProviderID { return f.id }
func (f *fakeArtistImageProvider) Priority() int           { return 0 }
func (f *fakeArtistImageProvider) Search(ctx context.Context, q ArtistImageQuery) ([]Candidate, error) {
	return f.candidates, nil
}

func TestResolveArtistImagesReturnsAllSortedByResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("artist-bytes-" + r.URL.Path))
	}))
	defer srv.Close()

	fanart := &fakeArtistImageProvider{id: "fanarttv", candidates: []Candidate{
		{ImageURL: srv.URL + "/a.jpg", ResolutionPx: 1920, ProviderID: "fanarttv"},
	}}
	lastfm := &fakeArtistImageProvider{id: "lastfm", candidates: []Candidate{
		{ImageURL: srv.URL + "/b.jpg", ResolutionPx: 300, ProviderID: "lastfm"},
	}}

	r, err := NewArtistImageResolver([]ArtistImageProvider{fanart, lastfm}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewArtistImageResolver: %v", err)
	}

	entries, err := r.Resolve(context.Background(), ArtistImageQuery{ArtistKey: "artist", Name: "Artist"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both images returned, got %d", len(entries))
	}
	if entries[0].ResolutionPx < entries[1].ResolutionPx {
		t.Fatalf("expected entries sorted largest-first, got %v then %v", entries[0].ResolutionPx, entries[1].ResolutionPx)
	}
}
