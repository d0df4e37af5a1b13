package fleetreplay

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theoremus-urban-solutions/fleet-replay/config"
	"github.com/theoremus-urban-solutions/fleet-replay/history"
	"github.com/theoremus-urban-solutions/fleet-replay/store"
)

// Server is the HTTP surface over the coordinator and cache.
type Server struct {
	cfg         config.AppConfig
	coordinator *history.Coordinator
	cache       store.Store
	httpServer  *http.Server
}

// NewServer wires the HTTP surface.
func NewServer(cfg config.AppConfig, coordinator *history.Coordinator, cache store.Store) *Server {
	return &Server{cfg: cfg, coordinator: coordinator, cache: cache}
}

// Start begins serving in the background.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/history.json", s.handleHistory)
	mux.HandleFunc("/api/fuel-events.json", s.handleFuelEvents)
	mux.HandleFunc("/api/replay/ws", s.handleReplayWS)

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           requestLogging(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("server listening on %s", addr)
}

// HandleGracefulShutdown blocks until SIGINT/SIGTERM, then drains.
func (s *Server) HandleGracefulShutdown() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Printf("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("server shutdown error: %v", err)
		} else {
			log.Printf("server shut down successfully")
		}
	}
}
