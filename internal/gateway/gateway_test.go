package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kitsune-lab/syncstage/internal/fuser"
	"github.com/kitsune-lab/syncstage/internal/settings"
	"github.com/kitsune-lab/syncstage/internal/source"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"), settings.EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	registry := source.NewRegistry(8, nil)
	broadcaster := fuser.NewBroadcaster()
	f := fuser.New(registry, broadcaster, nil, nil)
	return Deps{
		Registry:    registry,
		Fuser:       f,
		Broadcaster: broadcaster,
		Settings:    store,
		Bridge:      http.NotFoundHandler(),
		DataDir:     t.TempDir(),
	}
}

func TestCurrentTrackIdleByDefault(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestDeps(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/current-track")
	if err != nil {
		t.Fatalf("GET /current-track: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["source_id"] != "" && body["source_id"] != nil {
		t.Errorf("expected idle snapshot, got source_id=%v", body["source_id"])
	}
}

func TestGetConfigAppliesQueryOverlay(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestDeps(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/config?blur_strength=15")
	if err != nil {
		t.Fatalf("GET /config: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := body["blur_strength"]; got != float64(15) {
		t.Errorf("blur_strength = %v, want 15", got)
	}
}

func TestGuardedRoutesRunOpenWithoutAuth(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestDeps(t)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/album-art/preference", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		t.Errorf("status = 401 with no Auth configured, want request to reach the handler")
	}
}

func TestLoginRouteAbsentWithoutAuth(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestDeps(t)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (route unregistered when Auth is nil)", resp.StatusCode)
	}
}

func TestMetricsRouteAbsentWithoutMetrics(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestDeps(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (route unregistered when Metrics is nil)", resp.StatusCode)
	}
}
