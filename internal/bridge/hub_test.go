package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(hub)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return ws, func() { ws.Close(); srv.Close() }
}

func sendTrackData(t *testing.T, ws *websocket.Conn, title, artist string) {
	t.Helper()
	if err := ws.WriteJSON(inboundMessage{Type: msgTrackData, Title: title, Artist: artist, TrackKey: "native123"}); err != nil {
		t.Fatalf("write track_data: %v", err)
	}
}

func sendPosition(t *testing.T, ws *websocket.Conn, posMs int64, playing bool) {
	t.Helper()
	p := posMs
	if err := ws.WriteJSON(inboundMessage{
		Type:               msgPosition,
		PositionMs:         &p,
		PositionAsOfMillis: time.Now().UnixMilli(),
		IsPlaying:          playing,
	}); err != nil {
		t.Fatalf("write position: %v", err)
	}
}

func waitForLatest(t *testing.T, hub *Hub) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := hub.Latest(); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for hub.Latest() to report a snapshot")
}

func TestHubMergesTrackDataAndPositionIntoSnapshot(t *testing.T) {
	hub := NewHub(Config{}, nil)
	ws, cleanup := dialHub(t, hub)
	defer cleanup()

	sendTrackData(t, ws, "Song", "Artist")
	sent := time.Now()
	sendPosition(t, ws, 1000, true)
	waitForLatest(t, hub)

	snap, ok := hub.Latest()
	// While playing, Latest extrapolates the reported position by the time
	// elapsed since its as-of timestamp, so it lies between 1000 and 1000
	// plus the time since the report was sent (+1 ms for millisecond
	// truncation).
	upper := 1000 + time.Since(sent).Milliseconds() + 1
	if !ok {
		t.Fatal("expected a merged snapshot")
	}
	if snap.Title != "Song" || snap.Artist != "Artist" {
		t.Fatalf("expected merged track fields, got title=%q artist=%q", snap.Title, snap.Artist)
	}
	if snap.PositionMs == nil || *snap.PositionMs < 1000 || *snap.PositionMs > upper {
		t.Fatalf("expected position_ms in [1000, %d], got %v", upper, snap.PositionMs)
	}
	if !snap.IsPlaying {
		t.Fatal("expected is_playing=true")
	}
	if snap.Provenance["native_id"] != "native123" {
		t.Fatalf("expected native_id provenance, got %v", snap.Provenance)
	}
}

func TestHubLatestFalseBeforeAnyReport(t *testing.T) {
	hub := NewHub(Config{}, nil)
	if _, ok := hub.Latest(); ok {
		t.Fatal("expected no snapshot before any message has arrived")
	}
}

func TestHubDispatchWithoutConnectionFails(t *testing.T) {
	hub := NewHub(Config{}, nil)
	err := hub.Dispatch(context.Background(), "next", nil)
	if err == nil {
		t.Fatal("expected Dispatch to fail with no active connection")
	}
}

func TestHubDispatchWaitsForControlAck(t *testing.T) {
	hub := NewHub(Config{}, nil)
	ws, cleanup := dialHub(t, hub)
	defer cleanup()

	sendTrackData(t, ws, "Song", "Artist")
	sendPosition(t, ws, 0, true)
	waitForLatest(t, hub)

	go func() {
		for {
			var msg outboundMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "skip_next" {
				_ = ws.WriteJSON(inboundMessage{Type: msgControlAck, RequestID: msg.RequestID, Success: true})
				return
			}
		}
	}()

	if err := hub.Dispatch(context.Background(), "next", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestHubDispatchRejectsUnsupportedArgs(t *testing.T) {
	hub := NewHub(Config{}, nil)
	ws, cleanup := dialHub(t, hub)
	defer cleanup()

	sendTrackData(t, ws, "Song", "Artist")
	sendPosition(t, ws, 0, true)
	waitForLatest(t, hub)

	if err := hub.Dispatch(context.Background(), "seek", nil); err == nil {
		t.Fatal("expected seek without position_ms to be rejected before reaching the connection")
	}
}
