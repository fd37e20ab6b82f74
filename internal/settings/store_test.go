package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

func TestOpenCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := s.Global()
	want := model.DefaultSettings()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected default settings, got %+v want %+v", got, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected settings file to be created on first run: %v", err)
	}
}

func TestSetGlobalPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetGlobal("blur_strength", func(g *model.Settings) { g.BlurStrength = 75 }); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}

	reopened, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Global().BlurStrength; got != 75 {
		t.Fatalf("expected persisted blur_strength=75, got %d", got)
	}
}

func TestEnvOverrideTakesPrecedenceOverPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetGlobal("blur_strength", func(g *model.Settings) { g.BlurStrength = 10 }); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}

	forced := 99
	s2, err := Open(path, EnvOverrides{BlurStrength: &forced}, nil)
	if err != nil {
		t.Fatalf("reopen with override: %v", err)
	}
	if got := s2.Global().BlurStrength; got != 99 {
		t.Fatalf("expected env override blur_strength=99, got %d", got)
	}
}

func TestSetAndGetTrackPreference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := trackkey.FromTitleArtist("Artist", "Title")

	p, err := s.SetTrackPreference(key, func(p *model.TrackPreferences) {
		p.BackgroundStyle = model.BackgroundSharp
	})
	if err != nil {
		t.Fatalf("SetTrackPreference: %v", err)
	}
	if p.BackgroundStyle != model.BackgroundSharp {
		t.Fatalf("expected sharp background, got %q", p.BackgroundStyle)
	}

	got := s.TrackPreferences(key)
	if got.BackgroundStyle != model.BackgroundSharp {
		t.Fatalf("expected persisted preference, got %+v", got)
	}
}

func TestTrackPreferencesDefaultsToGlobalBackgroundStyle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := trackkey.FromTitleArtist("Artist", "Unseen Track")
	got := s.TrackPreferences(key)
	if got.BackgroundStyle != model.BackgroundStyle(model.DefaultSettings().DefaultBackgroundStyle) {
		t.Fatalf("expected default background style for unset track, got %q", got.BackgroundStyle)
	}
}

func TestCorruptDocumentIsQuarantinedAndDefaultRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.Global(); !reflect.DeepEqual(got, model.DefaultSettings()) {
		t.Fatalf("expected default settings after quarantine, got %+v", got)
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Fatalf("expected corrupt file to be quarantined: %v", err)
	}
}

func TestSubscribeReceivesChangeNotifications(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path, EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ch := s.Subscribe()

	if err := s.SetGlobal("visual_mode_enabled", func(g *model.Settings) { g.VisualModeEnabled = false }); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}

	select {
	case change := <-ch:
		if change.Key != "global.visual_mode_enabled" {
			t.Fatalf("expected global.visual_mode_enabled, got %q", change.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}
