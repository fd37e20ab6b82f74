package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var eventsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// events handles the optional GET /events WebSocket push surface (spec
// §4.7: "a lightweight /events WebSocket may be provided for push;
// otherwise browsers poll"). Each connection gets its own subscription to
// the fuser's broadcaster and receives one JSON NowPlaying frame per
// publication until it disconnects.
func (g *gateway) events(c *gin.Context) {
	ws, err := eventsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.d.Logger.Warn("events: upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	updates, unsubscribe := g.d.Broadcaster.Subscribe(8)
	defer unsubscribe()

	// A reader goroutine drains and discards client frames so control
	// frames (pings/closes) are processed and Close is detected promptly.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = ws.WriteJSON(g.d.Fuser.Current())

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case np, open := <-updates:
			if !open {
				return
			}
			if err := ws.WriteJSON(np); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
