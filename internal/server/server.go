package server

import (
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/config"
)

// Server exposes a Hub over HTTP: the websocket endpoint, health checks and
// the demo page.
type Server struct {
	cfg      config.Config
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Server for hub. The hub must be running for websocket
// connections to be accepted.
func New(cfg config.Config, hub *Hub, logger *slog.Logger) *Server {
	cfg = cfg.Sanitize()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &Server{
		cfg:     cfg,
		hub:     hub,
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Hub returns the hub served by s.
func (s *Server) Hub() *Hub {
	return s.hub
}
