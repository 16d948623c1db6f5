package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get(s.wsPath(), s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/thermostats", func(r chi.Router) {
				r.Get("/", s.handleListThermostats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetThermostat)
					r.Get("/characteristics", s.handleListCharacteristics)
					r.Get("/characteristics/{name}", s.handleGetCharacteristic)
					r.Put("/characteristics/{name}", s.handleSetCharacteristic)
					r.Post("/commands", s.handleCommand)
					r.Get("/history/commands", s.handleCommandHistory)
					r.Get("/history/states", s.handleStateHistory)
				})
			})
		})
	})

	return r
}

// handleHealth reports the bridge health the same way the MQTT health topic does.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, reason := s.bridge.Health()
	body := map[string]any{
		"status":      status,
		"version":     s.version,
		"thermostats": len(s.bridge.Devices()),
		"ws_clients":  s.hub.ClientCount(),
	}
	if reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, http.StatusOK, body)
}

// wsPath is the WebSocket route under /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
