package homekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"

	"github.com/nerrad567/gray-logic-venstar/internal/bridges/venstar"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// setTimeout bounds one HomeKit write including the confirming poll.
const setTimeout = 30 * time.Second

// Bridge is the subset of the Venstar bridge HomeKit drives.
type Bridge interface {
	Devices() []venstar.DeviceInfo
	Set(ctx context.Context, deviceID string, ch thermostat.Characteristic, value any, source string) (thermostat.State, error)
	AddListener(fn venstar.StateListener) func()
}

// Logger defines the logging interface used by the HomeKit server.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures the HomeKit server.
type Options struct {
	Config   config.HomeKitConfig
	BridgeID string
	Version  string
	Limits   thermostat.Limits
	Bridge   Bridge
	Logger   Logger
}

// Server publishes every configured thermostat as a HomeKit accessory behind
// a single HAP bridge accessory.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	cfg     config.HomeKitConfig
	bridge  Bridge
	logger  Logger
	primary *accessory.Bridge
	acc     map[string]*thermostatAccessory
	order   []string

	// pending holds the latest unapplied state per thermostat; wake signals
	// the apply loop. Characteristic values are only written from that loop.
	pendingMu sync.Mutex
	pending   map[string]thermostat.State
	wake      chan struct{}

	ctx       context.Context
	ctxCancel context.CancelFunc
	unlisten  func()
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New builds the accessories for every thermostat the bridge knows.
// Network activity starts with Start.
func New(opts Options) (*Server, error) {
	if opts.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if opts.Config.Pin == "" {
		return nil, fmt.Errorf("homekit pin is required")
	}
	if opts.Config.StoragePath == "" {
		return nil, fmt.Errorf("homekit storage path is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       opts.Config,
		bridge:    opts.Bridge,
		logger:    opts.Logger,
		acc:       make(map[string]*thermostatAccessory),
		pending:   make(map[string]thermostat.State),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		ctxCancel: cancel,
	}

	name := opts.BridgeID
	if name == "" {
		name = "Venstar Bridge"
	}
	s.primary = accessory.NewBridge(accessory.Info{
		Name:         name,
		SerialNumber: name,
		Manufacturer: manufacturer,
		Model:        "Gray Logic Venstar Bridge",
		Firmware:     opts.Version,
	})
	s.primary.A.Id = 1

	devices := opts.Bridge.Devices()
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	for i, d := range devices {
		a := newThermostatAccessory(d.ID, d.Name, d.ID, opts.Version, opts.Limits, s.setter(d.ID))
		// IDs must stay stable across restarts or paired clients lose the accessory.
		a.A.Id = uint64(i + 2)
		a.update(d.State)
		s.acc[d.ID] = a
		s.order = append(s.order, d.ID)
	}

	return s, nil
}

// Start registers the state listener and serves HAP until Stop.
func (s *Server) Start() error {
	var startErr error
	s.startOnce.Do(func() {
		hapServer, err := hap.NewServer(hap.NewFsStore(s.cfg.StoragePath), s.primary.A, s.accessories()...)
		if err != nil {
			startErr = fmt.Errorf("creating HAP server: %w", err)
			return
		}
		hapServer.Pin = s.cfg.Pin
		if s.cfg.Addr != "" {
			hapServer.Addr = s.cfg.Addr
		}

		s.unlisten = s.bridge.AddListener(s.handleState)

		s.wg.Add(1)
		go s.applyLoop()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logInfo("homekit server starting", "accessories", len(s.acc), "addr", s.cfg.Addr)
			if err := hapServer.ListenAndServe(s.ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
				s.logError("homekit server stopped", err)
			}
		}()
	})
	return startErr
}

// Stop shuts down the HAP server and removes the state listener.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.unlisten != nil {
			s.unlisten()
		}
		s.ctxCancel()
		s.wg.Wait()
	})
}

func (s *Server) accessories() []*accessory.A {
	out := make([]*accessory.A, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.acc[id].A)
	}
	return out
}

// handleState is the bridge listener. It never blocks the publisher; a
// newer state for the same thermostat replaces one not yet applied.
func (s *Server) handleState(deviceID string, state thermostat.State) {
	if _, ok := s.acc[deviceID]; !ok {
		return
	}
	s.pendingMu.Lock()
	s.pending[deviceID] = state
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Server) applyLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.applyPending()
		}
	}
}

func (s *Server) applyPending() {
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = make(map[string]thermostat.State, len(batch))
	s.pendingMu.Unlock()

	for id, state := range batch {
		s.acc[id].update(state)
	}
}

// setter routes a remote HomeKit write for one thermostat through the bridge.
func (s *Server) setter(deviceID string) setFunc {
	return func(ch thermostat.Characteristic, value any) error {
		ctx, cancel := context.WithTimeout(s.ctx, setTimeout)
		defer cancel()

		state, err := s.bridge.Set(ctx, deviceID, ch, value, venstar.SourceHomeKit)
		if err != nil {
			s.logWarn("homekit write failed",
				"device_id", deviceID,
				"characteristic", ch,
				"error", err)
			return err
		}
		s.handleState(deviceID, state)
		return nil
	}
}

func (s *Server) logInfo(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Info(msg, keysAndValues...)
	}
}

func (s *Server) logWarn(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, keysAndValues...)
	}
}

func (s *Server) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
