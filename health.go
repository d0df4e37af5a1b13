package fleetreplay

import (
	"net/http"

	"github.com/theoremus-urban-solutions/fleet-replay/history"
	"github.com/theoremus-urban-solutions/fleet-replay/store"
)

type healthResponse struct {
	Status      string        `json:"status"`
	Cache       store.Stats   `json:"cache"`
	Coordinator history.Stats `json:"coordinator"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Coordinator: s.coordinator.Stats()}
	if st, err := s.cache.Stats(r.Context()); err == nil {
		resp.Cache = st
	} else {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}
