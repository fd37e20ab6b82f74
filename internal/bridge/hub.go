// Package bridge implements the Spicetify Bridge Hub (C6): a WebSocket
// server accepting inbound connections from zero or more browser
// extensions, merging their position/track_data reports into a single
// PlaybackSnapshot, and forwarding control commands with ack correlation.
// Per spec §4.6 it behaves as an ordinary C1 source — internal/source wraps
// it through the local SpicetifyProvider interface rather than this
// package importing internal/source, avoiding an import cycle.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/telemetry"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// defaultHeartbeatInterval matches spec §4.6's "ping (heartbeat, default
// 20 s)".
const defaultHeartbeatInterval = 20 * time.Second

// ackTimeout bounds how long Dispatch waits for a control_ack before
// reporting the command as failed.
const ackTimeout = 5 * time.Second

// Config configures the hub's timing.
type Config struct {
	HeartbeatInterval time.Duration
	// PausedTimeout is how long the active connection may go silent before
	// Latest reports the source as having gone quiet. Zero means sticky
	// forever, matching the fuser's own "zero timeout" convention.
	PausedTimeout time.Duration
	// Metrics, when set, receives connection/message counts. Nil disables
	// instrumentation so tests can construct a Hub without a registry.
	Metrics *telemetry.Metrics
}

type trackState struct {
	nativeID    string
	title       string
	artist      string
	artists     []string
	album       string
	albumArtURI string
	durationMs  *int64
	liked       *bool
	colors      any
	receivedAt  time.Time
}

type positionState struct {
	positionMs int64
	asOf       time.Time
	isPlaying  bool
	shuffle    *bool
	repeat     *int
	volume     *int
	receivedAt time.Time
}

// Hub accepts WebSocket connections on a single well-known path, merges
// their reports into one PlaybackSnapshot, and forwards control commands to
// whichever connection most recently reported state.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu           sync.RWMutex
	conns        map[uint64]*conn
	nextID       uint64
	activeConnID uint64
	track        trackState
	position     positionState

	ackMu sync.Mutex
	acks  map[string]chan inboundMessage
}

// NewHub constructs a Hub. Its Upgrader only accepts connections whose
// remote address is loopback, per spec §4.6's "authenticated only by
// locality".
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					return false
				}
				ip := net.ParseIP(host)
				return ip != nil && ip.IsLoopback()
			},
		},
		conns: make(map[uint64]*conn),
		acks:  make(map[string]chan inboundMessage),
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs the connection's
// read pump until it closes. Intended to be mounted at /ws/spicetify by C7.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("spicetify bridge: upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	c := newConn(id, ws, h.logger)
	h.conns[id] = c
	h.mu.Unlock()
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.BridgeConnections.Inc()
	}

	h.logger.Info("spicetify bridge: connection opened", "conn", id)
	go c.writePump()
	c.readPump(h.handleInbound)

	h.mu.Lock()
	delete(h.conns, id)
	if h.activeConnID == id {
		h.activeConnID = 0
	}
	h.mu.Unlock()
	c.close()
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.BridgeConnections.Dec()
	}
	h.logger.Info("spicetify bridge: connection closed", "conn", id)
}

// staleAfterMultiplier is how many HeartbeatIntervals a connection may go
// without sending any message (including a pong reply to our heartbeat)
// before Run closes it.
const staleAfterMultiplier = 2

// Run sends a heartbeat ping to every connected extension every
// HeartbeatInterval, until ctx is cancelled. It also closes any connection
// that hasn't sent a message in over staleAfterMultiplier heartbeats,
// since a dead browser tab never sends a pong.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(outboundMessage{Type: msgPing})
			h.closeStaleConns()
		}
	}
}

func (h *Hub) closeStaleConns() {
	staleBefore := time.Now().Add(-staleAfterMultiplier * h.cfg.HeartbeatInterval)
	h.mu.RLock()
	var stale []*conn
	for _, c := range h.conns {
		if c.seenAt().Before(staleBefore) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range stale {
		h.logger.Info("spicetify bridge: closing stale connection", "conn", c.id)
		c.ws.Close()
	}
}

func (h *Hub) broadcast(msg outboundMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.send(msg)
		if h.cfg.Metrics != nil {
			h.cfg.Metrics.BridgeMessagesOut.Inc()
		}
	}
}

func (h *Hub) handleInbound(c *conn, msg inboundMessage) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.BridgeMessagesIn.Inc()
	}
	switch msg.Type {
	case msgPosition:
		h.mu.Lock()
		h.position = positionState{
			positionMs: derefInt64(msg.PositionMs),
			asOf:       millisToTime(msg.PositionAsOfMillis),
			isPlaying:  msg.IsPlaying,
			shuffle:    msg.Shuffle,
			repeat:     msg.Repeat,
			volume:     msg.Volume,
			receivedAt: time.Now(),
		}
		h.activeConnID = c.id
		h.mu.Unlock()

	case msgTrackData:
		h.mu.Lock()
		h.track = trackState{
			nativeID:    msg.TrackKey,
			title:       msg.Title,
			artist:      msg.Artist,
			artists:     msg.Artists,
			album:       msg.Album,
			albumArtURI: msg.AlbumArtURI,
			durationMs:  msg.DurationMs,
			liked:       msg.Liked,
			colors:      msg.Colors,
			receivedAt:  time.Now(),
		}
		h.activeConnID = c.id
		h.mu.Unlock()

	case msgPong:
		// c.lastSeen was already bumped by readPump.

	case msgControlAck:
		h.ackMu.Lock()
		if ch, ok := h.acks[msg.RequestID]; ok {
			ch <- msg
			delete(h.acks, msg.RequestID)
		}
		h.ackMu.Unlock()

	default:
		h.logger.Warn("spicetify bridge: unrecognized message type", "type", msg.Type)
	}
}

// Latest implements source.SpicetifyProvider: it returns the merged
// snapshot built from the most recent position and track_data reports, or
// false if the active connection has gone silent past PausedTimeout.
func (h *Hub) Latest() (*model.PlaybackSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.track.title == "" || h.position.asOf.IsZero() {
		return nil, false
	}
	if h.cfg.PausedTimeout > 0 && time.Since(h.position.receivedAt) > h.cfg.PausedTimeout {
		return nil, false
	}

	var key trackkey.Key
	provenance := map[string]string{}
	if h.track.nativeID != "" {
		key = trackkey.FromServiceID("spotify", h.track.nativeID)
		provenance["native_id"] = h.track.nativeID
	} else {
		key = trackkey.FromTitleArtist(h.track.artist, h.track.title)
	}

	// Extrapolate the reported position by wall-clock time since it was
	// sampled, since the extension only pushes a new position periodically
	// rather than on every frame (spec §4.6). Only while playing — a paused
	// position never advances — and clamped to the track's duration so a
	// long-silent-but-still-open socket doesn't report past the end.
	posMs := h.position.positionMs
	if h.position.isPlaying {
		posMs += time.Since(h.position.asOf).Milliseconds()
		if h.track.durationMs != nil && posMs > *h.track.durationMs {
			posMs = *h.track.durationMs
		}
		if posMs < 0 {
			posMs = 0
		}
	}

	snap := &model.PlaybackSnapshot{
		SourceID:    "spicetify",
		SampledAt:   h.position.asOf,
		TrackKey:    key,
		Title:       h.track.title,
		Artist:      h.track.artist,
		Artists:     h.track.artists,
		Album:       h.track.album,
		AlbumArtURI: h.track.albumArtURI,
		DurationMs:  h.track.durationMs,
		PositionMs:  &posMs,
		IsPlaying:   h.position.isPlaying,
		Liked:       h.track.liked,
		Shuffle:     h.position.shuffle,
		Repeat:      h.position.repeat,
		Volume:      h.position.volume,
		Provenance:  provenance,
	}
	if h.track.colors != nil {
		snap.Extra = map[string]any{"colors": h.track.colors}
	}
	snap.Clamp()
	return snap, true
}

// Capabilities implements source.SpicetifyProvider.
func (h *Hub) Capabilities() []string { return capabilities }

// Dispatch implements source.SpicetifyProvider: it maps action/args onto
// the extension's command vocabulary, sends it to the most recently active
// connection, and waits for a correlated control_ack.
func (h *Hub) Dispatch(ctx context.Context, action string, args map[string]any) error {
	cmdType, cmdArgs, err := mapControl(action, args)
	if err != nil {
		return err
	}

	h.mu.RLock()
	target, ok := h.conns[h.activeConnID]
	h.mu.RUnlock()
	if !ok {
		return errs.Misconfigured("no active spicetify extension connection", nil)
	}

	requestID := uuid.NewString()
	ackCh := make(chan inboundMessage, 1)
	h.ackMu.Lock()
	h.acks[requestID] = ackCh
	h.ackMu.Unlock()
	defer func() {
		h.ackMu.Lock()
		delete(h.acks, requestID)
		h.ackMu.Unlock()
	}()

	target.send(outboundMessage{Type: cmdType, RequestID: requestID, Args: cmdArgs})

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case ack := <-ackCh:
		if !ack.Success {
			return errs.Transient(fmt.Sprintf("spicetify control command %q failed: %s", cmdType, ack.Error), nil)
		}
		return nil
	case <-timer.C:
		return errs.Transient("timed out waiting for spicetify control_ack", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
