package bridge

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// conn wraps one extension's WebSocket connection. Writes go through a
// buffered channel drained by a single writer goroutine so concurrent
// Dispatch/heartbeat callers never race on the same *websocket.Conn, the
// same discipline the teacher's broadcastWriter uses for its client
// channels. lastSeen is read from the heartbeat goroutine and written from
// the read pump, so it's kept as a unix-nano atomic rather than a plain
// time.Time.
type conn struct {
	id       uint64
	ws       *websocket.Conn
	sendCh   chan outboundMessage
	lastSeen atomic.Int64
	logger   *slog.Logger

	closeOnce chan struct{}
}

func newConn(id uint64, ws *websocket.Conn, logger *slog.Logger) *conn {
	c := &conn{
		id:        id,
		ws:        ws,
		sendCh:    make(chan outboundMessage, 32),
		logger:    logger,
		closeOnce: make(chan struct{}),
	}
	c.lastSeen.Store(time.Now().UnixNano())
	return c
}

func (c *conn) seenAt() time.Time { return time.Unix(0, c.lastSeen.Load()) }

func (c *conn) send(msg outboundMessage) {
	select {
	case c.sendCh <- msg:
	default:
		c.logger.Warn("spicetify bridge: dropping outbound message, connection backlog full", "conn", c.id, "type", msg.Type)
	}
}

func (c *conn) writePump() {
	for msg := range c.sendCh {
		if err := c.ws.WriteJSON(msg); err != nil {
			c.logger.Warn("spicetify bridge: write failed", "conn", c.id, "error", err)
			return
		}
	}
}

// readPump blocks reading messages until the connection closes or errors,
// handing each decoded message to onMessage.
func (c *conn) readPump(onMessage func(*conn, inboundMessage)) {
	defer close(c.closeOnce)
	for {
		var msg inboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return
		}
		c.lastSeen.Store(time.Now().UnixNano())
		onMessage(c, msg)
	}
}

func (c *conn) close() {
	close(c.sendCh)
	c.ws.Close()
}
