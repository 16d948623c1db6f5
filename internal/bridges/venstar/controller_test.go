package venstar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// stubDevice is an in-memory Device. Writes are applied to the snapshot
// it serves, like the real controller does.
type stubDevice struct {
	mu        sync.Mutex
	snap      thermostat.Snapshot
	fetchErrs []error // consumed one per fetch, nil entries succeed
	writeErr  error
	writes    []thermostat.DeviceWrite
	fetches   int

	// block, when set, holds every fetch until closed or ctx ends.
	block   chan struct{}
	entered chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newStubDevice(snap thermostat.Snapshot) *stubDevice {
	return &stubDevice{snap: snap, entered: make(chan struct{}, 16)}
}

func (d *stubDevice) enter() func() {
	n := d.inFlight.Add(1)
	for {
		hi := d.maxInFlight.Load()
		if n <= hi || d.maxInFlight.CompareAndSwap(hi, n) {
			break
		}
	}
	return func() { d.inFlight.Add(-1) }
}

func (d *stubDevice) FetchSnapshot(ctx context.Context) (thermostat.Snapshot, error) {
	defer d.enter()()

	select {
	case d.entered <- struct{}{}:
	default:
	}

	d.mu.Lock()
	block := d.block
	d.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return thermostat.Snapshot{}, ctx.Err()
		}
	} else {
		time.Sleep(time.Millisecond)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetches++
	if len(d.fetchErrs) > 0 {
		err := d.fetchErrs[0]
		d.fetchErrs = d.fetchErrs[1:]
		if err != nil {
			return thermostat.Snapshot{}, err
		}
	}
	return d.snap, nil
}

func (d *stubDevice) Write(_ context.Context, w thermostat.DeviceWrite) error {
	defer d.enter()()
	time.Sleep(time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, w)
	if d.writeErr != nil {
		return d.writeErr
	}

	codes := thermostat.VenstarCodes()
	d.snap.Mode = codes.Modes[w.Mode]
	d.snap.HeatSetpoint = float64(w.HeatTemp)
	d.snap.CoolSetpoint = float64(w.CoolTemp)
	if w.Fan != nil {
		d.snap.FanState = codes.Fans[*w.Fan]
	}
	return nil
}

func (d *stubDevice) getWrites() []thermostat.DeviceWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]thermostat.DeviceWrite, len(d.writes))
	copy(out, d.writes)
	return out
}

func (d *stubDevice) getFetches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches
}

// recordingPublisher records every published state.
type recordingPublisher struct {
	mu     sync.Mutex
	states []thermostat.State
	ch     chan thermostat.State
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{ch: make(chan thermostat.State, 64)}
}

func (p *recordingPublisher) PublishState(_ context.Context, _ string, s thermostat.State) {
	p.mu.Lock()
	p.states = append(p.states, s)
	p.mu.Unlock()
	select {
	case p.ch <- s:
	default:
	}
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

func (p *recordingPublisher) wait(t *testing.T) thermostat.State {
	t.Helper()
	select {
	case s := <-p.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published state")
		return thermostat.State{}
	}
}

func celsiusSnap(mode thermostat.Mode, space, heat, cool float64) thermostat.Snapshot {
	return thermostat.Snapshot{
		Mode:         mode,
		SpaceTemp:    space,
		HeatSetpoint: heat,
		CoolSetpoint: cool,
		TempUnit:     thermostat.UnitCelsius,
		Activity:     thermostat.ActivityIdle,
		FanState:     thermostat.FanAuto,
	}
}

func newTestController(t *testing.T, dev Device) (*Controller, *recordingPublisher) {
	t.Helper()
	pub := newRecordingPublisher()
	c, err := NewController(ControllerOptions{
		DeviceID:     "hallway",
		Device:       dev,
		Translator:   thermostat.NewTranslator(thermostat.VenstarCodes(), thermostat.DefaultLimits()),
		PollInterval: time.Hour,
		Publisher:    pub,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c, pub
}

func TestNewController_Validation(t *testing.T) {
	tr := thermostat.NewTranslator(thermostat.VenstarCodes(), thermostat.DefaultLimits())
	dev := newStubDevice(celsiusSnap(thermostat.ModeOff, 20, 21, 24))
	pub := newRecordingPublisher()

	tests := []struct {
		name string
		opts ControllerOptions
	}{
		{"missing id", ControllerOptions{Device: dev, Translator: tr, Publisher: pub}},
		{"missing device", ControllerOptions{DeviceID: "a", Translator: tr, Publisher: pub}},
		{"missing translator", ControllerOptions{DeviceID: "a", Device: dev, Publisher: pub}},
		{"missing publisher", ControllerOptions{DeviceID: "a", Device: dev, Translator: tr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewController(tt.opts); err == nil {
				t.Error("NewController() expected error")
			}
		})
	}
}

func TestController_InitialState(t *testing.T) {
	c, _ := newTestController(t, newStubDevice(celsiusSnap(thermostat.ModeOff, 20, 21, 24)))

	want := thermostat.NewState(thermostat.DefaultLimits())
	if got := c.State(); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("Phase() = %s, want idle", c.Phase())
	}
	if s := c.Status(); s.LastPoll != nil || s.ConsecutiveFailures != 0 {
		t.Errorf("Status() = %+v, want no polls yet", s)
	}
}

func TestController_PollPublishes(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 19.5, 21, 24))
	c, pub := newTestController(t, dev)

	c.Poll(context.Background())

	got := pub.wait(t)
	if got.Mode != thermostat.ModeHeat || got.TargetTemp != 21 || got.CurrentTemp != 19.5 {
		t.Errorf("published state = %+v", got)
	}
	if c.State() != got {
		t.Errorf("State() = %+v, want published %+v", c.State(), got)
	}
	if s := c.Status(); s.LastPoll == nil || s.LastError != "" {
		t.Errorf("Status() = %+v, want successful poll", s)
	}
}

func TestController_PollErrorContained(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 19.5, 21, 24))
	dev.fetchErrs = []error{thermostat.ErrNetwork, thermostat.ErrMalformedSnapshot}
	c, pub := newTestController(t, dev)
	before := c.State()

	c.Poll(context.Background())
	c.Poll(context.Background())

	if pub.count() != 0 {
		t.Errorf("published %d states after failed polls, want 0", pub.count())
	}
	if c.State() != before {
		t.Errorf("State() changed after failed polls: %+v", c.State())
	}
	s := c.Status()
	if s.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2", s.ConsecutiveFailures)
	}
	if s.LastError == "" {
		t.Error("LastError is empty")
	}

	// Recovery resets the failure count.
	c.Poll(context.Background())
	if s := c.Status(); s.ConsecutiveFailures != 0 || s.LastError != "" {
		t.Errorf("Status() after recovery = %+v", s)
	}
}

func TestController_StartPollsImmediately(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeCool, 25, 21, 23))
	c, pub := newTestController(t, dev)

	c.Start(context.Background())

	got := pub.wait(t)
	if got.Mode != thermostat.ModeCool || got.TargetTemp != 23 {
		t.Errorf("first poll state = %+v", got)
	}
}

func TestController_StartPollsOnInterval(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeCool, 25, 21, 23))
	pub := newRecordingPublisher()
	c, err := NewController(ControllerOptions{
		DeviceID:     "hallway",
		Device:       dev,
		Translator:   thermostat.NewTranslator(thermostat.VenstarCodes(), thermostat.DefaultLimits()),
		PollInterval: 10 * time.Millisecond,
		Publisher:    pub,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	c.Start(context.Background())
	for i := 0; i < 3; i++ {
		pub.wait(t)
	}
	c.Stop()

	fetches := dev.getFetches()
	time.Sleep(50 * time.Millisecond)
	if dev.getFetches() != fetches {
		t.Error("controller kept polling after Stop")
	}
}

func TestController_ExecuteSetModeHeat(t *testing.T) {
	// previous target 22°C from the initial state, device in celsius.
	dev := newStubDevice(celsiusSnap(thermostat.ModeOff, 20, 18, 26))
	c, pub := newTestController(t, dev)

	state, err := c.Execute(context.Background(), thermostat.SetMode{Mode: thermostat.ModeHeat})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	writes := dev.getWrites()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	want := thermostat.DeviceWrite{Mode: 1, HeatTemp: 22, CoolTemp: 24}
	if w := writes[0]; w.Mode != want.Mode || w.HeatTemp != want.HeatTemp || w.CoolTemp != want.CoolTemp || w.Fan != nil {
		t.Errorf("write = %+v, want %+v", w, want)
	}

	// fetch before the write plus the confirming poll
	if dev.getFetches() != 2 {
		t.Errorf("fetches = %d, want 2", dev.getFetches())
	}
	if state.Mode != thermostat.ModeHeat || state.TargetTemp != 22 {
		t.Errorf("confirmed state = %+v", state)
	}
	if pub.count() != 1 {
		t.Errorf("published %d states, want 1", pub.count())
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("Phase() = %s after command, want idle", c.Phase())
	}
}

func TestController_ExecuteBumpsAutoBand(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeAuto, 21, 20, 24))
	c, _ := newTestController(t, dev)
	c.Poll(context.Background())

	if _, err := c.Execute(context.Background(), thermostat.SetCoolingThreshold{TempC: 21}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	writes := dev.getWrites()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	if writes[0].HeatTemp != 20 || writes[0].CoolTemp != 23 {
		t.Errorf("write = %+v, want heat 20 cool 23", writes[0])
	}
	if got := c.State().CoolingThreshold; got != 23 {
		t.Errorf("CoolingThreshold = %v, want 23", got)
	}
}

func TestController_ExecuteTargetInAutoFails(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeAuto, 21, 20, 24))
	c, pub := newTestController(t, dev)
	before := c.State()

	_, err := c.Execute(context.Background(), thermostat.SetTargetTemp{TempC: 22})
	if !errors.Is(err, thermostat.ErrUnsupportedInMode) {
		t.Fatalf("Execute() error = %v, want ErrUnsupportedInMode", err)
	}
	if n := len(dev.getWrites()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
	if c.State() != before || pub.count() != 0 {
		t.Error("failed command changed or published state")
	}
}

func TestController_ExecuteStoredOnly(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
	c, pub := newTestController(t, dev)

	state, err := c.Execute(context.Background(), thermostat.SetDisplayUnit{Unit: thermostat.UnitFahrenheit})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !state.DisplayUnitSticky || state.DisplayUnit != thermostat.UnitFahrenheit {
		t.Errorf("state = %+v, want sticky fahrenheit", state)
	}
	if n := len(dev.getWrites()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
	if dev.getFetches() != 1 {
		t.Errorf("fetches = %d, want 1 (no confirming poll)", dev.getFetches())
	}
	if pub.count() != 1 {
		t.Errorf("published %d states, want 1", pub.count())
	}

	// A later celsius poll keeps the user's choice.
	c.Poll(context.Background())
	if got := c.State().DisplayUnit; got != thermostat.UnitFahrenheit {
		t.Errorf("DisplayUnit after poll = %s, want fahrenheit", got)
	}
}

func TestController_ExecuteErrors(t *testing.T) {
	tests := []struct {
		name       string
		fetchErrs  []error
		writeErr   error
		wantErr    error
		wantWrites int
	}{
		{"fetch fails", []error{thermostat.ErrNetwork}, nil, thermostat.ErrNetwork, 0},
		{"write fails", nil, thermostat.ErrNetwork, thermostat.ErrNetwork, 1},
		{"write rejected", nil, ErrWriteRejected, ErrWriteRejected, 1},
		{"confirm fails", []error{nil, thermostat.ErrMalformedSnapshot}, nil, thermostat.ErrMalformedSnapshot, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
			dev.fetchErrs = tt.fetchErrs
			dev.writeErr = tt.writeErr
			c, pub := newTestController(t, dev)
			before := c.State()

			_, err := c.Execute(context.Background(), thermostat.SetTargetTemp{TempC: 23})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(dev.getWrites()); n != tt.wantWrites {
				t.Errorf("writes = %d, want %d", n, tt.wantWrites)
			}
			if c.State() != before {
				t.Errorf("State() changed after failed command: %+v", c.State())
			}
			if pub.count() != 0 {
				t.Errorf("published %d states, want 0", pub.count())
			}
		})
	}
}

func TestController_ExecuteInvalidCommand(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
	c, _ := newTestController(t, dev)

	_, err := c.Execute(context.Background(), thermostat.SetTargetTemp{TempC: 45})
	if !errors.Is(err, thermostat.ErrInvalidCommand) {
		t.Errorf("Execute() error = %v, want ErrInvalidCommand", err)
	}
	if n := len(dev.getWrites()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestController_MutualExclusion(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
	c, _ := newTestController(t, dev)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Poll(ctx)
		}()
		go func(i int) {
			defer wg.Done()
			//nolint:errcheck // only concurrency is under test
			c.Execute(ctx, thermostat.SetTargetTemp{TempC: 18 + float64(i%5)})
		}(i)
	}
	wg.Wait()

	if got := dev.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent device calls = %d, want 1", got)
	}
	if n := len(dev.getWrites()); n != 10 {
		t.Errorf("writes = %d, want 10", n)
	}
}

func TestController_LateResultAfterStopDropped(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
	dev.block = make(chan struct{})
	c, pub := newTestController(t, dev)
	before := c.State()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), thermostat.SetTargetTemp{TempC: 23})
		errCh <- err
	}()

	select {
	case <-dev.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}

	c.Stop()
	close(dev.block)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Execute() error = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return")
	}

	if n := len(dev.getWrites()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
	if c.State() != before || pub.count() != 0 {
		t.Error("late result mutated state after Stop")
	}
}

func TestController_StoppedRejectsWork(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
	c, pub := newTestController(t, dev)
	c.Stop()
	c.Stop() // idempotent

	if _, err := c.Execute(context.Background(), thermostat.SetFan{On: true}); !errors.Is(err, ErrStopped) {
		t.Errorf("Execute() error = %v, want ErrStopped", err)
	}
	c.Poll(context.Background())
	if dev.getFetches() != 0 || pub.count() != 0 {
		t.Error("stopped controller touched the device")
	}
}

func TestController_ExecuteHonoursContext(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
	dev.block = make(chan struct{})
	c, _ := newTestController(t, dev)

	// Hold the gate with a blocked poll.
	go c.Poll(context.Background())
	<-dev.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Execute(ctx, thermostat.SetFan{On: true}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want DeadlineExceeded", err)
	}
	close(dev.block)
}

func TestController_GetSet(t *testing.T) {
	dev := newStubDevice(celsiusSnap(thermostat.ModeHeat, 21, 20, 24))
	c, _ := newTestController(t, dev)
	c.Poll(context.Background())

	if err := c.Set(context.Background(), thermostat.CharFanOn, true); err != nil {
		t.Fatalf("Set(fan_on) error = %v", err)
	}
	writes := dev.getWrites()
	if len(writes) != 1 || writes[0].Fan == nil || *writes[0].Fan != 1 {
		t.Fatalf("writes = %+v, want one fan write", writes)
	}
	if writes[0].HeatTemp != 20 || writes[0].CoolTemp != 24 {
		t.Errorf("fan write moved setpoints: %+v", writes[0])
	}

	got, err := c.Get(thermostat.CharFanOn)
	if err != nil || got != true {
		t.Errorf("Get(fan_on) = %v, %v; want true", got, err)
	}

	if err := c.Set(context.Background(), thermostat.CharCurrentTemperature, 20.0); !errors.Is(err, thermostat.ErrInvalidCommand) {
		t.Errorf("Set(read-only) error = %v, want ErrInvalidCommand", err)
	}
}
