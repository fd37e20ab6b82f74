package source

import (
	"context"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// SpicetifyProvider is the narrow view of the bridge hub (C6) this adapter
// needs, kept as a local interface so internal/source never imports
// internal/bridge — the engine wires a concrete *bridge.Hub in at startup.
type SpicetifyProvider interface {
	Latest() (*model.PlaybackSnapshot, bool)
	Dispatch(ctx context.Context, action string, args map[string]any) error
	Capabilities() []string
}

// spicetifySource makes C6's bridge hub look like an ordinary C1 source,
// per spec §4.6 ("C6 is a source").
type spicetifySource struct {
	hub SpicetifyProvider
}

// NewSpicetify constructs the Spicetify source adapter over hub.
func NewSpicetify(hub SpicetifyProvider) Source {
	return &spicetifySource{hub: hub}
}

func (s *spicetifySource) Name() trackkey.SourceID { return "spicetify" }
func (s *spicetifySource) Start(ctx context.Context) error { return nil }
func (s *spicetifySource) Stop()                            {}

func (s *spicetifySource) Capabilities() []Capability {
	caps := make([]Capability, 0, len(s.hub.Capabilities()))
	for _, c := range s.hub.Capabilities() {
		caps = append(caps, Capability(c))
	}
	return caps
}

func (s *spicetifySource) Snapshot(ctx context.Context) (*model.PlaybackSnapshot, error) {
	snap, ok := s.hub.Latest()
	if !ok {
		return nil, nil
	}
	return snap, nil
}

func (s *spicetifySource) Control(ctx context.Context, cmd Command) error {
	if !HasCapability(s.Capabilities(), cmd.Action) {
		return errs.Misconfigured("spicetify bridge socket not connected or capability unsupported", nil)
	}
	return s.hub.Dispatch(ctx, string(cmd.Action), cmd.Args)
}
