package server

import "net/http"

// Routes registers the real-time endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", HealthHandler)
	mux.HandleFunc("GET /healthz", s.StatusHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("GET /demo", s.DemoPageHandler)
}

// SetupRoutes returns a new ServeMux with the real-time endpoints registered.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	s.Routes(mux)
	return mux
}
