package fleetreplay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/fleet-replay/config"
	"github.com/theoremus-urban-solutions/fleet-replay/history"
	"github.com/theoremus-urban-solutions/fleet-replay/store"
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

func dialReplayWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	wsServer := httptest.NewServer(http.HandlerFunc(s.handleReplayWS))
	t.Cleanup(wsServer.Close)
	url := "ws" + strings.TrimPrefix(wsServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing replay websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestReplayWSLoadStatusCarriesPath(t *testing.T) {
	from := int64(1712345600000)
	to := int64(1712345660000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{"raw": []map[string]any{
			{
				"timestamp": from,
				"gps":       map[string]any{"longitude": 13.4, "latitude": 52.5, "speed": 40.0},
				"io":        map[string]any{"ignition": 1},
			},
			{
				"timestamp": to,
				"gps":       map[string]any{"longitude": 13.5, "latitude": 52.6, "speed": 45.0},
				"io":        map[string]any{"ignition": 1},
			},
		}})
		fmt.Fprint(w, string(body))
	}))
	defer upstream.Close()

	cfg := config.Default()
	cfg.API.HistoryURL = upstream.URL
	st := store.NewLocalStore()
	coordinator := history.NewCoordinator(st, history.NewClient(cfg.API), cfg)
	s := NewServer(cfg, coordinator, st)

	conn := dialReplayWS(t, s)
	if err := conn.WriteJSON(replayCommand{Type: "load", Device: "dev", From: from, To: to}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var status struct {
		Type   string             `json:"type"`
		Loaded int                `json:"loaded"`
		Path   []telemetry.Sample `json:"path"`
		Events []telemetry.Event  `json:"events"`
	}
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatal(err)
	}
	if status.Type != "status" {
		t.Fatalf("expected a status message, got %q", status.Type)
	}
	if status.Loaded != 2 {
		t.Errorf("expected 2 loaded samples, got %d", status.Loaded)
	}
	// The client draws the pruned geometry from the status alone.
	if len(status.Path) != 2 {
		t.Fatalf("expected the pruned path in the status, got %d samples", len(status.Path))
	}
	if status.Path[0].Timestamp != from || status.Path[1].Timestamp != to {
		t.Errorf("expected ascending path %d..%d, got %d..%d",
			from, to, status.Path[0].Timestamp, status.Path[1].Timestamp)
	}

	// A scrub after load produces a render frame over the same geometry.
	if err := conn.WriteJSON(replayCommand{Type: "scrub", Value: 1}); err != nil {
		t.Fatal(err)
	}
	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "frame" || frame.Frame.Index != 1 {
		t.Errorf("expected a frame at index 1, got %+v", frame)
	}
}
