// Package source implements the Source Registry (C1): a polymorphic set of
// playback-source adapters, each polled on its own ticker, emitting
// PlaybackSnapshots onto a shared bounded channel for the fuser (C2) to
// consume, with per-source cooling/backoff and blocklist filtering.
package source

import (
	"context"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// Capability names one control action a Source may support.
type Capability string

const (
	CapPlayPause Capability = "play_pause"
	CapNext      Capability = "next"
	CapPrevious  Capability = "previous"
	CapSeek      Capability = "seek"
	CapVolume    Capability = "volume"
	CapShuffle   Capability = "shuffle"
	CapRepeat    Capability = "repeat"
	CapLike      Capability = "like"
	CapQueue     Capability = "queue"
)

// Command is a control command dispatched to a Source by C7.
type Command struct {
	Action Capability
	// Args carries the action's payload: seek's position_ms, volume's
	// level, like's {track_id, action}, etc. Each Source interprets only
	// the keys its capability set declares.
	Args map[string]any
}

// Source is the capability set every playback-source adapter implements.
// Start/Stop bracket the adapter's lifecycle; Snapshot is polled by the
// registry's per-source ticker and must not block longer than the poll
// period allows.
type Source interface {
	Name() trackkey.SourceID
	Start(ctx context.Context) error
	Stop()
	Snapshot(ctx context.Context) (*model.PlaybackSnapshot, error)
	Capabilities() []Capability
	Control(ctx context.Context, cmd Command) error
}

// HasCapability reports whether cap is present in caps.
func HasCapability(caps []Capability, cap Capability) bool {
	for _, c := range caps {
		if c == cap {
			return true
		}
	}
	return false
}

// Config is the per-source configuration the registry reads from C8 at
// startup (spec §4.1: "discovered at startup from C8").
type Config struct {
	ID             trackkey.SourceID
	Enabled        bool
	PollInterval   time.Duration
	Priority       int
	PausedTimeout  time.Duration
	Blocklist      []string
}

// defaultPollInterval is the spec's default per-source ticker period.
const defaultPollInterval = time.Second

// minBackoff and maxBackoff bound a cooling source's exponential backoff,
// per spec §4.1: "1 s → 30 s max".
const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)
