package venstar

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-venstar/internal/history"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

const (
	// commandTimeout bounds a full command cycle (fetch, write, confirm).
	commandTimeout = 30 * time.Second

	// historyTimeout bounds a single history write.
	historyTimeout = 5 * time.Second

	// Command sources.
	SourceMQTT    = "mqtt"
	SourceAPI     = "api"
	SourceHomeKit = "homekit"
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// HistoryRecorder stores the command log and state changes.
// Satisfied by *history.SQLiteRepository. Optional.
type HistoryRecorder interface {
	RecordCommand(ctx context.Context, rec *history.CommandRecord) error
	RecordState(ctx context.Context, rec *history.StateRecord) error
}

// TelemetryWriter receives every applied state.
// Satisfied by *influxdb.Client. Optional.
type TelemetryWriter interface {
	WriteThermostatState(deviceID string, s thermostat.State, at time.Time)
}

// StateListener is called after a thermostat's state changes.
type StateListener func(deviceID string, state thermostat.State)

// DeviceInfo describes one configured thermostat.
type DeviceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Status
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	Config     *config.Config
	MQTTClient MQTTClient

	// Version is reported in health messages.
	Version string

	History   HistoryRecorder // optional
	Telemetry TelemetryWriter // optional
	Metrics   *Metrics        // optional
	Logger    Logger          // optional
}

type device struct {
	info       config.ThermostatConfig
	address    string
	controller *Controller
}

// Bridge connects the configured thermostats to the Gray Logic bus.
// It handles:
//   - One reconciliation controller per thermostat
//   - Commands from Core via MQTT, acknowledged as accepted then completed or failed
//   - Fan-out of state changes to MQTT, listeners, history and telemetry
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg       *config.Config
	mqtt      MQTTClient
	health    *HealthReporter
	history   HistoryRecorder
	telemetry TelemetryWriter
	metrics   *Metrics
	topics    mqtt.Topics

	// Immutable after NewBridge.
	devices map[string]*device
	order   []string

	// Last state published per device, for change detection.
	published   map[string]thermostat.State
	publishedMu sync.Mutex

	listeners    map[uint64]StateListener
	nextListener uint64
	listenersMu  sync.RWMutex

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge with one controller per configured thermostat.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if len(opts.Config.Thermostats) == 0 {
		return nil, fmt.Errorf("at least one thermostat is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTTClient,
		history:   opts.History,
		telemetry: opts.Telemetry,
		metrics:   opts.Metrics,
		devices:   make(map[string]*device, len(opts.Config.Thermostats)),
		published: make(map[string]thermostat.State),
		listeners: make(map[uint64]StateListener),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	for _, tc := range opts.Config.Thermostats {
		if err := b.addDevice(tc); err != nil {
			ctxCancel()
			return nil, fmt.Errorf("thermostat %s: %w", tc.ID, err)
		}
	}
	sort.Strings(b.order)

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Devices:   b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

func (b *Bridge) addDevice(tc config.ThermostatConfig) error {
	if _, exists := b.devices[tc.ID]; exists {
		return fmt.Errorf("duplicate thermostat id")
	}

	limits := LimitsFor(b.cfg.Control, tc)
	if err := limits.Validate(); err != nil {
		return err
	}
	translator := thermostat.NewTranslator(thermostat.VenstarCodes(), limits)

	client, err := NewClient(tc.BaseURL(), tc.GetRequestTimeout(), translator)
	if err != nil {
		return err
	}

	opts := ControllerOptions{
		DeviceID:     tc.ID,
		Device:       client,
		Translator:   translator,
		PollInterval: tc.GetPollInterval(),
		Publisher:    b,
		Logger:       b.logger,
	}
	if b.metrics != nil {
		opts.Observer = b.metrics
	}

	ctrl, err := NewController(opts)
	if err != nil {
		return err
	}

	b.devices[tc.ID] = &device{info: tc, address: client.BaseURL(), controller: ctrl}
	b.order = append(b.order, tc.ID)
	return nil
}

// LimitsFor builds translator limits from the control section and a
// thermostat's overrides.
func LimitsFor(ctrl config.ControlConfig, tc config.ThermostatConfig) thermostat.Limits {
	limits := thermostat.Limits{
		MinSetpointDelta: ctrl.MinSetpointDelta,
		FallbackHeatC:    ctrl.FallbackHeatC,
		FallbackCoolC:    ctrl.FallbackCoolC,
		MinTempC:         ctrl.MinTempC,
		MaxTempC:         ctrl.MaxTempC,
	}
	if tc.MinSetpointDelta > 0 {
		limits.MinSetpointDelta = tc.MinSetpointDelta
	}
	return limits
}

// Start subscribes to commands, starts every controller and begins health
// reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	for _, id := range b.order {
		b.devices[id].controller.Start(ctx)
	}

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"thermostats", len(b.order))

	return nil
}

// Stop tears down every controller and waits for in-flight MQTT commands.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		for _, id := range b.order {
			b.devices[id].controller.Stop()
		}

		b.health.Stop()
		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// ThermostatIDs returns the configured thermostat IDs in sorted order.
func (b *Bridge) ThermostatIDs() []string {
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	return ids
}

// Controller returns the controller for a thermostat.
func (b *Bridge) Controller(deviceID string) (*Controller, error) {
	d, ok := b.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return d.controller, nil
}

// Device returns the description and status of one thermostat.
func (b *Bridge) Device(deviceID string) (DeviceInfo, error) {
	d, ok := b.devices[deviceID]
	if !ok {
		return DeviceInfo{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return DeviceInfo{
		ID:      d.info.ID,
		Name:    d.info.DisplayName(),
		Address: d.address,
		Status:  d.controller.Status(),
	}, nil
}

// Devices returns every thermostat in ID order.
func (b *Bridge) Devices() []DeviceInfo {
	out := make([]DeviceInfo, 0, len(b.order))
	for _, id := range b.order {
		info, _ := b.Device(id) //nolint:errcheck // id comes from b.order
		out = append(out, info)
	}
	return out
}

// DeviceStatuses implements DeviceStatusSource.
func (b *Bridge) DeviceStatuses() []Status {
	out := make([]Status, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.devices[id].controller.Status())
	}
	return out
}

// Health returns the bridge health as it would be reported now.
func (b *Bridge) Health() (HealthStatus, string) {
	return b.health.Status()
}

// Execute runs a command on a thermostat and records it in history.
func (b *Bridge) Execute(ctx context.Context, deviceID string, cmd thermostat.Command, source string) (thermostat.State, error) {
	ctrl, err := b.Controller(deviceID)
	if err != nil {
		return thermostat.State{}, err
	}

	start := time.Now()
	state, err := ctrl.Execute(ctx, cmd)
	b.recordCommand(ctx, deviceID, cmd.Name(), cmd.Params(), source, time.Since(start), err)
	if err != nil {
		b.logWarn("command failed",
			"device_id", deviceID,
			"command", cmd.Name(),
			"source", source,
			"error", err)
	}
	return state, err
}

// Set writes one characteristic on a thermostat.
func (b *Bridge) Set(ctx context.Context, deviceID string, ch thermostat.Characteristic, value any, source string) (thermostat.State, error) {
	if _, err := b.Controller(deviceID); err != nil {
		return thermostat.State{}, err
	}
	cmd, err := thermostat.CommandFor(ch, value)
	if err != nil {
		return thermostat.State{}, err
	}
	return b.Execute(ctx, deviceID, cmd, source)
}

// Get reads one characteristic of a thermostat.
func (b *Bridge) Get(deviceID string, ch thermostat.Characteristic) (any, error) {
	ctrl, err := b.Controller(deviceID)
	if err != nil {
		return nil, err
	}
	return ctrl.Get(ch)
}

// AddListener registers fn for state changes and returns a function that
// removes it.
func (b *Bridge) AddListener(fn StateListener) func() {
	b.listenersMu.Lock()
	id := b.nextListener
	b.nextListener++
	b.listeners[id] = fn
	b.listenersMu.Unlock()

	return func() {
		b.listenersMu.Lock()
		delete(b.listeners, id)
		b.listenersMu.Unlock()
	}
}

// PublishState implements Publisher. Telemetry and metrics see every
// applied state; MQTT, history and listeners only see changes.
func (b *Bridge) PublishState(ctx context.Context, deviceID string, state thermostat.State) {
	now := time.Now().UTC()

	if b.metrics != nil {
		b.metrics.ObserveState(deviceID, state)
	}
	if b.telemetry != nil {
		b.telemetry.WriteThermostatState(deviceID, state, now)
	}

	if b.stateUnchanged(deviceID, state) {
		return
	}

	b.publishMQTTState(deviceID, state)

	if b.history != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		err := b.history.RecordState(hctx, &history.StateRecord{DeviceID: deviceID, State: state, RecordedAt: now})
		cancel()
		if err != nil {
			b.logError("failed to record state", err)
		}
	}

	b.listenersMu.RLock()
	listeners := make([]StateListener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(deviceID, state)
	}
}

// stateUnchanged reports whether state equals the last published state,
// recording it if not.
func (b *Bridge) stateUnchanged(deviceID string, state thermostat.State) bool {
	b.publishedMu.Lock()
	defer b.publishedMu.Unlock()

	if prev, ok := b.published[deviceID]; ok && prev == state {
		return true
	}
	b.published[deviceID] = state
	return false
}

func (b *Bridge) publishMQTTState(deviceID string, state thermostat.State) {
	msg := NewStateMessage(deviceID, b.devices[deviceID].address, state)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.State(deviceID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

// handleMQTTMessage routes an inbound bus message. Commands run on their
// own goroutine so a slow device never blocks the MQTT client.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	category, deviceID, ok := mqtt.ParseDeviceTopic(topic)
	if !ok {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch category {
	case mqtt.CategoryCommand:
		select {
		case <-b.done:
			return
		default:
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.handleCommand(deviceID, payload)
		}()
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", category))
	}
}

func (b *Bridge) handleCommand(topicDeviceID string, payload []byte) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.DeviceID == "" {
		msg.DeviceID = topicDeviceID
	}
	if msg.Source == "" {
		msg.Source = SourceMQTT
	}

	b.logInfo("received command",
		"command_id", msg.ID,
		"device_id", msg.DeviceID,
		"command", msg.Command)

	if msg.DeviceID != topicDeviceID {
		b.publishAckError(msg, "", ErrCodeInvalidCommand,
			fmt.Sprintf("device_id %q does not match topic %q", msg.DeviceID, topicDeviceID))
		return
	}

	d, ok := b.devices[msg.DeviceID]
	if !ok {
		b.publishAckError(msg, "", ErrCodeNotConfigured,
			fmt.Sprintf("device %s not configured", msg.DeviceID))
		return
	}

	cmd, err := thermostat.ParseCommand(msg.Command, msg.Parameters)
	if err != nil {
		b.recordCommand(b.ctx, msg.DeviceID, msg.Command, msg.Parameters, msg.Source, 0, err)
		b.publishAckError(msg, d.address, ErrorCode(err), err.Error())
		return
	}

	b.publishAck(NewAckMessage(msg, AckAccepted, d.address))

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	state, err := b.Execute(ctx, msg.DeviceID, cmd, msg.Source)
	if err != nil {
		b.publishAckError(msg, d.address, ErrorCode(err), err.Error())
		return
	}

	ack := NewAckMessage(msg, AckCompleted, d.address)
	ack.State = &state
	b.publishAck(ack)
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(ack.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

func (b *Bridge) publishAckError(cmd CommandMessage, address, code, message string) {
	b.publishAck(NewAckError(cmd, address, code, message))
	b.logWarn("command rejected",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command,
		"code", code,
		"error", message)
}

func (b *Bridge) recordCommand(ctx context.Context, deviceID, command string, params map[string]any, source string, d time.Duration, cmdErr error) {
	if b.history == nil {
		return
	}

	rec := &history.CommandRecord{
		DeviceID:   deviceID,
		Command:    command,
		Parameters: params,
		Source:     source,
		Status:     history.StatusCompleted,
		DurationMS: d.Milliseconds(),
	}
	if cmdErr != nil {
		rec.Status = history.StatusFailed
		rec.Error = cmdErr.Error()
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	if err := b.history.RecordCommand(hctx, rec); err != nil {
		b.logError("failed to record command", err)
	}
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
