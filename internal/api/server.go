package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-venstar/internal/bridges/venstar"
	"github.com/nerrad567/gray-logic-venstar/internal/history"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the subset of the Venstar bridge the API drives.
type Bridge interface {
	Devices() []venstar.DeviceInfo
	Device(deviceID string) (venstar.DeviceInfo, error)
	Get(deviceID string, ch thermostat.Characteristic) (any, error)
	Set(ctx context.Context, deviceID string, ch thermostat.Characteristic, value any, source string) (thermostat.State, error)
	Execute(ctx context.Context, deviceID string, cmd thermostat.Command, source string) (thermostat.State, error)
	Health() (venstar.HealthStatus, string)
	AddListener(fn venstar.StateListener) func()
}

// HistoryReader serves the history endpoints.
type HistoryReader interface {
	ListCommands(ctx context.Context, filter history.CommandFilter) (*history.CommandList, error)
	ListStates(ctx context.Context, deviceID string, limit int) ([]history.StateRecord, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Bridge   Bridge
	History  HistoryReader       // optional; history endpoints return 503 without it
	Gatherer prometheus.Gatherer // optional; defaults to prometheus.DefaultGatherer
	Version  string
}

// Server is the HTTP API server for the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	bridge   Bridge
	history  HistoryReader
	gatherer prometheus.Gatherer
	version  string
	tickets  *ticketStore
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
	unlisten func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		bridge:   deps.Bridge,
		history:  deps.History,
		gatherer: gatherer,
		version:  deps.Version,
		tickets:  newTicketStore(),
	}
	s.hub = NewHub(deps.WS, deps.Logger, s.currentStates)
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, registers a bridge listener that relays
// state changes to subscribed clients, and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.unlisten = s.bridge.AddListener(s.relayState)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unlisten != nil {
		s.unlisten()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// currentStates lists the last published state of every thermostat.
func (s *Server) currentStates() []StateChangedEvent {
	devices := s.bridge.Devices()
	out := make([]StateChangedEvent, 0, len(devices))
	for _, d := range devices {
		out = append(out, StateChangedEvent{DeviceID: d.ID, State: d.State})
	}
	return out
}

// relayState forwards a published thermostat state to WebSocket clients.
func (s *Server) relayState(deviceID string, state thermostat.State) {
	s.hub.Broadcast(ChannelStateChanged, deviceID, StateChangedEvent{
		DeviceID: deviceID,
		State:    state,
	})
}
