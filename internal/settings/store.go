// Package settings implements the Settings Store (C8): one persistent
// document holding global settings and per-track preferences, loaded once
// at startup, mutated only through a single writer, and published to
// subscribers on every commit. Persistence follows the teacher's
// write-temp-then-rename discipline from internal/playlist/store.go,
// generalized from a versioned playlist document to a versioned settings
// document.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

const currentVersion = 1

// document is the on-disk shape. Tracks is keyed by the string form of a
// trackkey.Key since JSON object keys must be strings.
type document struct {
	Version int                               `json:"version"`
	Global  model.Settings                    `json:"global"`
	Tracks  map[string]model.TrackPreferences `json:"tracks"`
}

// Store owns the settings document: a single in-memory copy, mutated only
// while holding mu, and persisted synchronously on every mutation.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  document

	// effective is doc.Global with EnvOverrides applied on top, recomputed
	// whenever doc.Global changes. Overlay order per spec §4.8: env > URL
	// query (applied by C7 at render time, not held here) > persisted > code
	// default.
	effective model.Settings

	env    EnvOverrides
	logger *slog.Logger
	subs   []chan model.SettingsChange
}

// EnvOverrides carries the subset of global settings that may be forced by
// environment variable, parsed once by config at startup. A nil pointer
// field means "no override".
type EnvOverrides struct {
	UpdateIntervalMs       *int
	BlurStrength           *int
	DefaultBackgroundStyle *string
	VisualModeEnabled      *bool
	SlideshowIntervalMs    *int
	SourceBlocklist        []string
	ProviderBlocklist      []string
	AdminAuthEnabled       *bool
}

func (e EnvOverrides) apply(s model.Settings) model.Settings {
	if e.UpdateIntervalMs != nil {
		s.UpdateIntervalMs = *e.UpdateIntervalMs
	}
	if e.BlurStrength != nil {
		s.BlurStrength = *e.BlurStrength
	}
	if e.DefaultBackgroundStyle != nil {
		s.DefaultBackgroundStyle = *e.DefaultBackgroundStyle
	}
	if e.VisualModeEnabled != nil {
		s.VisualModeEnabled = *e.VisualModeEnabled
	}
	if e.SlideshowIntervalMs != nil {
		s.SlideshowIntervalMs = *e.SlideshowIntervalMs
	}
	if e.SourceBlocklist != nil {
		s.SourceBlocklist = e.SourceBlocklist
	}
	if e.ProviderBlocklist != nil {
		s.ProviderBlocklist = e.ProviderBlocklist
	}
	if e.AdminAuthEnabled != nil {
		s.AdminAuthEnabled = *e.AdminAuthEnabled
	}
	return s
}

// Open loads the settings document from path, creating one from
// model.DefaultSettings on first run. A corrupt file is quarantined with a
// ".corrupt" suffix and a fresh default document is created in its place,
// per the errs.KindCorrupt handling convention.
func Open(path string, env EnvOverrides, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("settings: create dir: %w", err)
		}
	}

	s := &Store{path: path, env: env, logger: logger}

	doc, err := loadDocument(path, logger)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	s.recomputeEffectiveLocked()
	if path != "" {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if err := s.persistLocked(); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func loadDocument(path string, logger *slog.Logger) (document, error) {
	def := document{Version: currentVersion, Global: model.DefaultSettings(), Tracks: map[string]model.TrackPreferences{}}
	if path == "" {
		return def, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return def, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("settings: read %q: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		quarantinePath := path + ".corrupt"
		logger.Warn("settings: discarding corrupt settings document", "path", path, "quarantine", quarantinePath, "error", err)
		_ = os.Rename(path, quarantinePath)
		return def, nil
	}
	if doc.Tracks == nil {
		doc.Tracks = map[string]model.TrackPreferences{}
	}
	return doc, nil
}

func (s *Store) recomputeEffectiveLocked() {
	s.effective = s.env.apply(s.doc.Global)
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "settings-*.json.tmp")
	if err != nil {
		return errs.Transient("settings: create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Transient("settings: write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Transient("settings: fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Transient("settings: close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errs.Transient("settings: rename temp file", err)
	}
	return nil
}

// Global returns the current effective global settings (env overlaid on
// the persisted document).
func (s *Store) Global() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective
}

// EnvOverrides returns the env overrides this Store was opened with, so a
// caller overlaying a third layer on top (C7's URL query parameters) can
// tell which fields env already pinned and must not be clobbered — per
// spec §4.8 the precedence is env > URL query > persisted > default.
func (s *Store) EnvOverrides() EnvOverrides {
	return s.env
}

// SetGlobal applies mutate to the persisted global settings, recomputes the
// effective overlay, persists, and notifies subscribers.
func (s *Store) SetGlobal(key string, mutate func(*model.Settings)) error {
	s.mu.Lock()
	mutate(&s.doc.Global)
	s.recomputeEffectiveLocked()
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(model.SettingsChange{Key: "global." + key, At: time.Now()})
	return nil
}

// TrackPreferences returns the stored preferences for key, or a zero-value
// record (with the default background style) if none has been set.
func (s *Store) TrackPreferences(key trackkey.Key) model.TrackPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.doc.Tracks[string(key)]; ok {
		return p
	}
	return model.TrackPreferences{TrackKey: key, BackgroundStyle: model.BackgroundStyle(s.effective.DefaultBackgroundStyle)}
}

// SetTrackPreference applies mutate to key's preferences (creating one if
// absent), persists, and notifies subscribers.
func (s *Store) SetTrackPreference(key trackkey.Key, mutate func(*model.TrackPreferences)) (model.TrackPreferences, error) {
	s.mu.Lock()
	p := s.doc.Tracks[string(key)]
	p.TrackKey = key
	mutate(&p)
	p.LastVerifiedAt = time.Now()
	s.doc.Tracks[string(key)] = p
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return model.TrackPreferences{}, err
	}
	s.publish(model.SettingsChange{Key: "tracks." + string(key), At: time.Now()})
	return p, nil
}

// Subscribe returns a channel receiving every future SettingsChange. The
// channel is buffered (16 entries); when a slow subscriber's buffer is
// full, further notifications to it are dropped and logged. Subscribe is
// meant for a handful of long-lived internal consumers (C2/C4/C5), not
// per-request subscriptions.
func (s *Store) Subscribe() <-chan model.SettingsChange {
	ch := make(chan model.SettingsChange, 16)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) publish(change model.SettingsChange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
			s.logger.Warn("settings: dropping change notification, subscriber backlog full", "key", change.Key)
		}
	}
}
