package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// SnapshotEvent is one PlaybackSnapshot emitted onto the registry's shared
// channel, tagged with the Source's configured priority and idle timeout so
// the fuser doesn't need a side lookup (mirrors PlaybackSnapshot.Priority).
type SnapshotEvent struct {
	Snapshot model.PlaybackSnapshot
}

// poolState tracks one registered source's runtime bookkeeping: its
// configuration, cooling state, and blocklist.
type poolState struct {
	src    Source
	cfg    Config
	cancel context.CancelFunc

	mu              sync.Mutex
	consecutiveFail int
	coolingUntil    time.Time
	blocklist       map[string]struct{}
}

func (p *poolState) cooling(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Before(p.coolingUntil)
}

func (p *poolState) recordFailure(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFail++
	if p.consecutiveFail < 2 {
		return 0
	}
	backoff := minBackoff << uint(p.consecutiveFail-2)
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	p.coolingUntil = now.Add(backoff)
	return backoff
}

func (p *poolState) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFail = 0
	p.coolingUntil = time.Time{}
}

func (p *poolState) blocked(entity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.blocklist[entity]
	return ok
}

// Registry owns the set of registered Sources, polls each on its own
// ticker, applies cooling backoff and per-source blocklists, and publishes
// every accepted snapshot onto Events for the fuser to consume.
type Registry struct {
	Events chan SnapshotEvent

	logger *slog.Logger

	mu      sync.RWMutex
	sources map[trackkey.SourceID]*poolState
}

// NewRegistry constructs a Registry with a bounded event channel of the
// given capacity (spec §4.1: "a single-producer bounded channel").
func NewRegistry(bufferSize int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Events:  make(chan SnapshotEvent, bufferSize),
		logger:  logger,
		sources: make(map[trackkey.SourceID]*poolState),
	}
}

// Register adds src to the registry under cfg. It must be called before
// Start for that source.
func (r *Registry) Register(src Source, cfg Config) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	blocklist := make(map[string]struct{}, len(cfg.Blocklist))
	for _, e := range cfg.Blocklist {
		blocklist[e] = struct{}{}
	}
	r.mu.Lock()
	r.sources[src.Name()] = &poolState{src: src, cfg: cfg, blocklist: blocklist}
	r.mu.Unlock()
}

// SetBlocklist replaces the blocklist for a running source, applied on the
// next poll (C8 pushes this after a settings change).
func (r *Registry) SetBlocklist(id trackkey.SourceID, entities []string) {
	r.mu.RLock()
	p, ok := r.sources[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	blocklist := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		blocklist[e] = struct{}{}
	}
	p.mu.Lock()
	p.blocklist = blocklist
	p.mu.Unlock()
}

// Start launches every enabled registered source's poll loop. It returns
// once all sources have been started (their Start methods have returned);
// the poll loops themselves run until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	r.mu.RLock()
	states := make([]*poolState, 0, len(r.sources))
	for _, p := range r.sources {
		states = append(states, p)
	}
	r.mu.RUnlock()

	for _, p := range states {
		if !p.cfg.Enabled {
			continue
		}
		srcCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		if err := p.src.Start(srcCtx); err != nil {
			r.logger.Warn("source failed to start", "source", p.src.Name(), "error", err)
			cancel()
			continue
		}
		go r.poll(srcCtx, p)
	}
}

// Stop cancels every running source's poll loop and calls Stop on each.
func (r *Registry) Stop() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.sources {
		if p.cancel != nil {
			p.cancel()
		}
		p.src.Stop()
	}
}

func (r *Registry) poll(ctx context.Context, p *poolState) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, p)
		}
	}
}

func (r *Registry) tick(ctx context.Context, p *poolState) {
	now := time.Now()
	if p.cooling(now) {
		return
	}

	snap, err := p.src.Snapshot(ctx)
	if err != nil {
		backoff := p.recordFailure(now)
		if backoff > 0 {
			r.logger.Warn("source entered cooling after repeated failures",
				"source", p.src.Name(), "backoff", backoff, "error", err)
		} else {
			r.logger.Debug("source snapshot failed", "source", p.src.Name(), "error", err)
		}
		return
	}
	p.recordSuccess()

	if snap == nil {
		return
	}
	if !snap.Valid() {
		return
	}
	if entity, ok := snap.Extra["app_id"].(string); ok && p.blocked(entity) {
		return
	}

	snap.Clamp()
	snap.SourceID = p.src.Name()
	snap.Priority = p.cfg.Priority
	snap.PausedTimeout = p.cfg.PausedTimeout

	select {
	case r.Events <- SnapshotEvent{Snapshot: *snap}:
	case <-ctx.Done():
	default:
		r.logger.Warn("dropping snapshot, event channel full", "source", p.src.Name())
	}
}

// Dispatch routes a control command to the named source, after checking its
// declared capabilities (spec §4.1: "C7 looks up capabilities before
// dispatching").
func (r *Registry) Dispatch(ctx context.Context, id trackkey.SourceID, cmd Command) error {
	r.mu.RLock()
	p, ok := r.sources[id]
	r.mu.RUnlock()
	if !ok {
		return errSourceNotFound(id)
	}
	if !HasCapability(p.src.Capabilities(), cmd.Action) {
		return errCapabilityUnsupported(id, cmd.Action)
	}
	return p.src.Control(ctx, cmd)
}

// Capabilities returns the declared capability set for a registered source.
func (r *Registry) Capabilities(id trackkey.SourceID) ([]Capability, bool) {
	r.mu.RLock()
	p, ok := r.sources[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.src.Capabilities(), true
}
