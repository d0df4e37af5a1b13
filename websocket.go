package fleetreplay

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/fleet-replay/history"
	"github.com/theoremus-urban-solutions/fleet-replay/replay"
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// replayCommand is an inbound websocket message: a window load, a scrub
// position or a clear.
type replayCommand struct {
	Type   string  `json:"type"` // load|scrub|clear
	Device string  `json:"device,omitempty"`
	From   int64   `json:"from,omitempty"`
	To     int64   `json:"to,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// replayStatus announces a completed load: the pruned geometry so the client
// can draw the path before the first scrub frame, plus the deduped events.
type replayStatus struct {
	Type   string             `json:"type"` // status
	Loaded int                `json:"loaded"`
	Path   []telemetry.Sample `json:"path"`
	Events []telemetry.Event  `json:"events"`
}

// wsFrame wraps a render frame for the wire.
type wsFrame struct {
	Type  string       `json:"type"` // frame
	Frame replay.Frame `json:"frame"`
}

// handleReplayWS runs one replay engine per connection: scrub values in,
// render frames out. There is no broadcast hub; live fan-out is a different
// subsystem.
func (s *Server) handleReplayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	var writeMu sync.Mutex
	write := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			log.Printf("websocket write failed: %v", err)
		}
	}

	engine := replay.NewEngine(s.cfg.Replay, replay.SinkFunc(func(f replay.Frame) {
		write(wsFrame{Type: "frame", Frame: f})
	}), nil)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			return
		}
		var cmd replayCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("websocket: invalid message: %v", err)
			continue
		}
		switch cmd.Type {
		case "load":
			token := engine.BeginSession()
			go func(cmd replayCommand) {
				res, err := s.coordinator.GetHistory(r.Context(), cmd.Device, cmd.From, cmd.To, history.Options{})
				if err != nil {
					log.Printf("websocket: load failed for %s: %v", cmd.Device, err)
					return
				}
				events := make([]telemetry.Event, 0, len(res.FuelEvents))
				for _, f := range res.FuelEvents {
					events = append(events, telemetry.EventFromFuel(f, cmd.Device))
				}
				if engine.LoadPath(token, res.Raw, events, cmd.From, cmd.To) {
					write(replayStatus{
						Type:   "status",
						Loaded: len(res.Raw),
						Path:   engine.Path(),
						Events: engine.Events(),
					})
				}
			}(cmd)
		case "scrub":
			engine.Scrub(replay.ScrubValue(cmd.Value))
		case "clear":
			engine.Clear()
		default:
			log.Printf("websocket: unknown command %q", cmd.Type)
		}
	}
}
