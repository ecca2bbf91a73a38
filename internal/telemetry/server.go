package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pretrade-risk-engine/internal/config"
)

// Server runs the HTTP/websocket telemetry endpoint for the live-view
// dashboard.
type Server struct {
	cfg      config.TelemetryConfig
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer wires a Hub, its Handlers, and the underlying http.Server over
// provider. Callers push events via Server.Hub().Broadcast as the engine
// drives transitions; the server itself does not poll the engine.
func NewServer(cfg config.TelemetryConfig, provider SnapshotProvider, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, cfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "telemetry-server"),
	}
}

// Hub exposes the websocket hub so callers can broadcast domain events
// (bucket updates, limit breaches, order lifecycle transitions) as they
// happen.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub loop and blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("telemetry server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("telemetry server error: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("stopping telemetry server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
