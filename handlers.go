package fleetreplay

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/fleet-replay/history"
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

type errorPayload struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseEpoch accepts epoch values (seconds or milliseconds) and RFC3339.
func parseEpoch(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
		return telemetry.NormalizeEpochMS(v), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := q.Get("device")
	from, okFrom := parseEpoch(q.Get("from"))
	to, okTo := parseEpoch(q.Get("to"))
	if deviceID == "" || !okFrom || !okTo || from >= to {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "device, from and to are required and from must precede to"})
		return
	}
	force := q.Get("force") == "1" || q.Get("force") == "true"
	res, err := s.coordinator.GetHistory(r.Context(), deviceID, from, to, history.Options{ForceFetch: force})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFuelEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := q.Get("device")
	from, okFrom := parseEpoch(q.Get("from"))
	to, okTo := parseEpoch(q.Get("to"))
	if deviceID == "" || !okFrom || !okTo || from >= to {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "device, from and to are required and from must precede to"})
		return
	}
	events := s.coordinator.GetFuelEvents(r.Context(), deviceID, from, to)
	writeJSON(w, http.StatusOK, map[string][]telemetry.FuelEvent{"fuelEvents": events})
}

// requestLogging tags each request with a short id for log correlation.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("req %s %s %s took %s", id, r.Method, r.URL.Path, time.Since(start))
	})
}
