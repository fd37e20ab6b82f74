// Package fuser implements the Playback Fuser (C2): a single-threaded
// cooperative selector that owns the one process-wide NowPlaying state,
// choosing a winning source on every input and publishing changes to
// subscribers via Broadcaster.
package fuser

import (
	"context"
	"log/slog"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/source"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// idleTickInterval is the spec's re-evaluation tick for catching idle
// timeouts even when no new snapshot arrives.
const idleTickInterval = 250 * time.Millisecond

// heartbeatInterval republishes the current NowPlaying unconditionally so
// late subscribers converge, per spec §4.2.
const heartbeatInterval = time.Second

// TrackChangeFunc is invoked on the fuser's own goroutine whenever the
// published track_key changes, so per-track work (lyrics, art) can be
// started/cancelled for the new key. It must return promptly (spec §4.2:
// cancellation "must be prompt (≤ 100 ms)") — implementations should hand
// off any blocking work to their own goroutine.
type TrackChangeFunc func(ctx context.Context, newKey trackkey.Key)

// Fuser is the single-threaded cooperative selector. All mutation of its
// state happens on the goroutine running Run.
type Fuser struct {
	registry    *source.Registry
	broadcaster *Broadcaster
	logger      *slog.Logger
	onTrackChange TrackChangeFunc

	candidates map[trackkey.SourceID]candidate
	last       model.NowPlaying
	lastPublishedAt time.Time

	trackCancel context.CancelFunc
}

// New constructs a Fuser reading snapshots from registry and publishing to
// broadcaster.
func New(registry *source.Registry, broadcaster *Broadcaster, logger *slog.Logger, onTrackChange TrackChangeFunc) *Fuser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{
		registry:      registry,
		broadcaster:   broadcaster,
		logger:        logger,
		onTrackChange: onTrackChange,
		candidates:    make(map[trackkey.SourceID]candidate),
		last:          model.Idle(),
	}
}

// Current returns the most recently computed NowPlaying, safe to call from
// the owning goroutine only; other components should subscribe via
// Broadcaster instead of polling this.
func (f *Fuser) Current() model.NowPlaying {
	return f.last
}

// Run is the fuser's cooperative loop. It blocks until ctx is cancelled.
func (f *Fuser) Run(ctx context.Context) {
	idleTicker := time.NewTicker(idleTickInterval)
	defer idleTicker.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	f.publish(ctx, true)

	for {
		select {
		case <-ctx.Done():
			if f.trackCancel != nil {
				f.trackCancel()
			}
			return
		case ev := <-f.registry.Events:
			f.candidates[ev.Snapshot.SourceID] = candidate{snapshot: ev.Snapshot}
			f.publish(ctx, false)
		case <-idleTicker.C:
			f.publish(ctx, false)
		case <-heartbeat.C:
			f.publish(ctx, true)
		}
	}
}

// publish recomputes NowPlaying from the current candidate set and
// publishes it if it differs from the last one, or unconditionally when
// force is true (the heartbeat and the initial publish).
func (f *Fuser) publish(ctx context.Context, force bool) {
	now := time.Now()
	np := f.compute(now)

	prev := f.last
	changed := np.DiffersFrom(prev)
	f.last = np
	if changed {
		f.onTrackKeyChange(ctx, prev.TrackKey, np.TrackKey)
	}

	if changed || force {
		f.lastPublishedAt = now
		f.broadcaster.Publish(np)
	}
}

func (f *Fuser) compute(now time.Time) model.NowPlaying {
	winner, found := pickWinner(now, f.candidates)
	if !found {
		idle := model.Idle()
		idle.SampledAt = now
		idle.PublishedAt = now
		return idle
	}

	winner = enrich(f.logger, winner, f.candidates)

	np := model.NowPlaying{
		PlaybackSnapshot: winner,
		WinningSourceID:  winner.SourceID,
		PublishedAt:      now,
	}
	return np
}

func (f *Fuser) onTrackKeyChange(ctx context.Context, prev, next trackkey.Key) {
	if prev == next {
		return
	}
	if f.trackCancel != nil {
		f.trackCancel()
	}
	if next == "" {
		f.trackCancel = nil
		return
	}
	trackCtx, cancel := context.WithCancel(ctx)
	f.trackCancel = cancel
	if f.onTrackChange != nil {
		f.onTrackChange(trackCtx, next)
	}
}
