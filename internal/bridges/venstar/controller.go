package venstar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// DefaultPollInterval is used when ControllerOptions.PollInterval is zero.
const DefaultPollInterval = 60 * time.Second

// Phase is what a controller is doing right now.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePolling    Phase = "polling"
	PhaseCommanding Phase = "commanding"
)

// Publisher receives every state the controller applies.
// It is called with the gate held, so one device never has two calls in flight.
type Publisher interface {
	PublishState(ctx context.Context, deviceID string, state thermostat.State)
}

// Observer records poll and command outcomes. Optional.
type Observer interface {
	ObservePoll(deviceID string, duration time.Duration, err error)
	ObserveCommand(deviceID, command string, duration time.Duration, err error)
}

// Logger is the logging interface used by the bridge package.
// Satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	DeviceID     string
	Device       Device
	Translator   *thermostat.Translator
	PollInterval time.Duration
	Publisher    Publisher
	Observer     Observer // optional
	Logger       Logger   // optional
}

// Status is a point-in-time view of a controller for health and the API.
type Status struct {
	DeviceID            string           `json:"device_id"`
	Phase               Phase            `json:"phase"`
	State               thermostat.State `json:"state"`
	LastPoll            *time.Time       `json:"last_poll,omitempty"`
	LastError           string           `json:"last_error,omitempty"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
}

// Controller owns the normalized state of one thermostat.
//
// It polls the device on a fixed interval and runs commands against it.
// A one-slot gate serializes poll cycles and command cycles, so a poll
// never lands between a command's snapshot fetch and its write, and two
// commands never race. After Stop, results that arrive late are dropped.
//
// Thread Safety: All methods are safe for concurrent use.
type Controller struct {
	id         string
	device     Device
	translator *thermostat.Translator
	interval   time.Duration
	publisher  Publisher
	observer   Observer
	logger     Logger

	gate  chan struct{}
	alive atomic.Bool

	mu        sync.RWMutex
	state     thermostat.State
	phase     Phase
	lastPoll  time.Time
	lastErr   error
	failures  int
	startOnce sync.Once

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctxCancel context.CancelFunc
}

// NewController creates a controller with default initial state.
// Call Start to begin polling.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}
	if opts.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if opts.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c := &Controller{
		id:         opts.DeviceID,
		device:     opts.Device,
		translator: opts.Translator,
		interval:   interval,
		publisher:  opts.Publisher,
		observer:   opts.Observer,
		logger:     opts.Logger,
		gate:       make(chan struct{}, 1),
		state:      thermostat.NewState(opts.Translator.Limits()),
		phase:      PhaseIdle,
		done:       make(chan struct{}),
		ctxCancel:  func() {},
	}
	c.alive.Store(true)
	return c, nil
}

// ID returns the device ID.
func (c *Controller) ID() string {
	return c.id
}

// Start polls once immediately and then every interval until Stop is
// called or ctx is cancelled. Calling Start more than once has no effect.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		c.mu.Lock()
		c.ctxCancel = cancel
		c.mu.Unlock()

		c.wg.Add(1)
		go c.pollLoop(loopCtx)
	})
}

// Stop cancels the poll timer, marks the controller dead and waits for
// the poll loop to exit. In-flight commands finish with ErrStopped.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.alive.Store(false)
		close(c.done)

		c.mu.RLock()
		cancel := c.ctxCancel
		c.mu.RUnlock()
		cancel()

		c.wg.Wait()
	})
}

func (c *Controller) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.Poll(ctx)
		}
	}
}

// Poll runs one poll cycle. Failures are logged and recorded in Status;
// the state is left unchanged and nothing is published. A stopped
// controller ignores the call.
func (c *Controller) Poll(ctx context.Context) {
	if err := c.acquire(ctx, PhasePolling); err != nil {
		return
	}
	defer c.release()

	start := time.Now()
	err := c.pollCycle(ctx, c.State())
	if c.observer != nil && !errors.Is(err, ErrStopped) {
		c.observer.ObservePoll(c.id, time.Since(start), err)
	}

	switch {
	case err == nil:
		c.recordPoll(nil)
	case errors.Is(err, ErrStopped), errors.Is(err, context.Canceled):
	default:
		c.recordPoll(err)
		c.logWarn("poll failed", "device_id", c.id, "error", err)
	}
}

// Execute runs cmd: fetch a fresh snapshot, translate, write, then
// re-poll to confirm. The error is returned to the caller. If the write
// or the confirming poll fails the state is left unchanged.
func (c *Controller) Execute(ctx context.Context, cmd thermostat.Command) (thermostat.State, error) {
	start := time.Now()
	state, err := c.execute(ctx, cmd)
	if c.observer != nil {
		c.observer.ObserveCommand(c.id, cmd.Name(), time.Since(start), err)
	}
	return state, err
}

func (c *Controller) execute(ctx context.Context, cmd thermostat.Command) (thermostat.State, error) {
	if err := c.acquire(ctx, PhaseCommanding); err != nil {
		return c.State(), err
	}
	defer c.release()

	latest, err := c.device.FetchSnapshot(ctx)
	if err != nil {
		return c.State(), fmt.Errorf("fetching snapshot: %w", err)
	}
	if !c.alive.Load() {
		return c.State(), ErrStopped
	}

	result, err := c.translator.TranslateCommand(cmd, latest, c.State())
	if err != nil {
		return c.State(), err
	}

	if result.Write == nil {
		c.apply(ctx, result.State)
		return result.State, nil
	}

	if err := c.device.Write(ctx, *result.Write); err != nil {
		return c.State(), fmt.Errorf("writing control: %w", err)
	}
	if !c.alive.Load() {
		return c.State(), ErrStopped
	}

	c.setPhase(PhasePolling)
	if err := c.pollCycle(ctx, result.State); err != nil {
		return c.State(), fmt.Errorf("confirming write: %w", err)
	}
	c.recordPoll(nil)
	return c.State(), nil
}

// pollCycle fetches, translates against prev and applies. Gate must be held.
func (c *Controller) pollCycle(ctx context.Context, prev thermostat.State) error {
	snap, err := c.device.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	if !c.alive.Load() {
		return ErrStopped
	}

	next, err := c.translator.TranslateSnapshot(snap, prev)
	if err != nil {
		return err
	}
	c.apply(ctx, next)
	return nil
}

// apply replaces the state and publishes it. Gate must be held.
func (c *Controller) apply(ctx context.Context, next thermostat.State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	c.publisher.PublishState(ctx, c.id, next)
}

// Get returns the current value of one characteristic.
func (c *Controller) Get(ch thermostat.Characteristic) (any, error) {
	return c.State().Value(ch)
}

// Set writes one characteristic through the command path.
func (c *Controller) Set(ctx context.Context, ch thermostat.Characteristic, value any) error {
	cmd, err := thermostat.CommandFor(ch, value)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// State returns a copy of the current normalized state.
func (c *Controller) State() thermostat.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Status returns the controller status for health and the API.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		DeviceID:            c.id,
		Phase:               c.phase,
		State:               c.state,
		ConsecutiveFailures: c.failures,
	}
	if !c.lastPoll.IsZero() {
		t := c.lastPoll
		s.LastPoll = &t
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// acquire takes the gate or gives up when ctx ends or the controller stops.
func (c *Controller) acquire(ctx context.Context, phase Phase) error {
	if !c.alive.Load() {
		return ErrStopped
	}

	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}

	if !c.alive.Load() {
		<-c.gate
		return ErrStopped
	}
	c.setPhase(phase)
	return nil
}

func (c *Controller) release() {
	c.setPhase(PhaseIdle)
	<-c.gate
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Controller) recordPoll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastErr = err
		c.failures++
		return
	}
	c.lastPoll = time.Now().UTC()
	c.lastErr = nil
	c.failures = 0
}

func (c *Controller) logWarn(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keysAndValues...)
	}
}
