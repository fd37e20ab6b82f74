package trackkey

import "testing"

func TestFromTitleArtistStripsParentheticalVariants(t *testing.T) {
	a := FromTitleArtist("Eagles", "Hotel California")
	b := FromTitleArtist("Eagles", "Hotel California (Remastered 2011)")
	if a != b {
		t.Fatalf("expected parenthetical variant to normalize to the same key, got %q vs %q", a, b)
	}
}

func TestFromTitleArtistIsCaseInsensitive(t *testing.T) {
	a := FromTitleArtist("Eagles", "Hotel California")
	b := FromTitleArtist("EAGLES", "hotel california")
	if a != b {
		t.Fatalf("expected case-insensitive match, got %q vs %q", a, b)
	}
}

func TestFromTitleArtistStripsFeatureClause(t *testing.T) {
	a := FromTitleArtist("Artist", "Song")
	b := FromTitleArtist("Artist", "Song feat. Someone Else")
	if a != b {
		t.Fatalf("expected feature clause to be stripped, got %q vs %q", a, b)
	}
}

func TestFromTitleArtistIsStable(t *testing.T) {
	a := FromTitleArtist("Daft Punk", "Around the World")
	b := FromTitleArtist("Daft Punk", "Around the World")
	if a != b {
		t.Fatalf("derivation must be deterministic, got %q vs %q", a, b)
	}
}

func TestFromServiceIDPrefersServiceNamespace(t *testing.T) {
	k := FromServiceID("streamingservice", "abc123")
	if k != "svc:streamingservice:abc123" {
		t.Fatalf("unexpected service key: %q", k)
	}
}

func TestDistinctTracksDoNotCollide(t *testing.T) {
	a := FromTitleArtist("Artist A", "Song One")
	b := FromTitleArtist("Artist B", "Song Two")
	if a == b {
		t.Fatalf("expected distinct tracks to produce distinct keys")
	}
}
