package source

import (
	"context"
	"sync"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// NewOSMedia constructs the host-OS media-session source. The concrete
// polling mechanism is supplied per platform by osMediaSnapshot and
// osMediaControl — osascript
// against Music.app on Darwin, an MPRIS-shaped stub on Linux pending a real
// D-Bus binding.
func NewOSMedia() Source {
	return &osMediaSource{}
}

type osMediaSource struct {
	mu      sync.Mutex
	started bool
}

func (s *osMediaSource) Name() trackkey.SourceID { return "osmedia" }

func (s *osMediaSource) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *osMediaSource) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *osMediaSource) Capabilities() []Capability {
	return []Capability{CapPlayPause, CapNext, CapPrevious}
}

func (s *osMediaSource) Control(ctx context.Context, cmd Command) error {
	return osMediaControl(ctx, cmd)
}

func (s *osMediaSource) Snapshot(ctx context.Context) (*model.PlaybackSnapshot, error) {
	return osMediaSnapshot(ctx)
}
